package pccc

import "github.com/yatesdr/ablink/logging"

// debugLog logs a message if debug logging is enabled for "pccc".
func debugLog(format string, args ...interface{}) {
	logging.DebugLog("pccc", format, args...)
}
