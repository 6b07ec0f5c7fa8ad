package main

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/yatesdr/ablink/attrstring"
	"github.com/yatesdr/ablink/config"
	"github.com/yatesdr/ablink/tag"
)

// app is the terminal tag browser: a table of configured gateways on the
// left, refreshed from tag.Gateways() for whichever ones have an active
// coordinator, and a tag-read panel on the right.
type app struct {
	cfg *config.PoolConfig

	tv     *tview.Application
	table  *tview.Table
	input  *tview.InputField
	value  *tview.TextView
	status *tview.TextView

	selected *config.GatewayConfig
}

func newApp(cfg *config.PoolConfig) *app {
	a := &app{cfg: cfg, tv: tview.NewApplication()}
	a.build()
	return a
}

func (a *app) build() {
	a.table = tview.NewTable().SetBorders(false).SetSelectable(true, false).SetFixed(1, 0)
	headers := []string{"Name", "Address", "CPU", "State"}
	for i, h := range headers {
		a.table.SetCell(0, i, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}
	a.table.SetSelectedFunc(a.onSelectGateway)
	a.refreshTable()

	tableFrame := tview.NewFrame(a.table).SetBorders(1, 0, 0, 0, 1, 1)
	tableFrame.SetBorder(true).SetTitle(" Gateways ")

	a.input = tview.NewInputField().SetLabel("Tag: ").SetFieldWidth(40)
	a.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.readSelectedTag(a.input.GetText())
		}
	})

	a.value = tview.NewTextView().SetDynamicColors(true)
	a.value.SetBorder(true).SetTitle(" Value ")

	a.status = tview.NewTextView().SetDynamicColors(true)

	readPanel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.input, 1, 0, true).
		AddItem(a.value, 0, 1, false).
		AddItem(a.status, 1, 0, false)
	readPanel.SetBorder(true).SetTitle(" Read a Tag (select a gateway, type a name, Enter) ")

	root := tview.NewFlex().
		AddItem(tableFrame, 0, 1, true).
		AddItem(readPanel, 0, 1, false)

	pages := tview.NewPages().AddPage("main", root, true, true)

	a.tv.SetRoot(pages, true).SetFocus(a.table)
	a.tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTab {
			if a.tv.GetFocus() == a.table {
				a.tv.SetFocus(a.input)
			} else {
				a.tv.SetFocus(a.table)
			}
			return nil
		}
		if event.Key() == tcell.KeyCtrlC || (event.Rune() == 'q' && a.tv.GetFocus() == a.table) {
			a.tv.Stop()
			return nil
		}
		return event
	})

	go a.pollLoop()
}

// refreshTable rebuilds the gateway list from config, decorated with live
// state for whichever gateways already have a coordinator running — a
// gateway with no tag created against it yet shows "not connected".
func (a *app) refreshTable() {
	live := map[string]tag.GatewayInfo{}
	for _, info := range tag.Gateways() {
		live[info.Gateway] = info
	}

	gws := append([]config.GatewayConfig(nil), a.cfg.Gateways...)
	sort.Slice(gws, func(i, j int) bool { return gws[i].Name < gws[j].Name })

	for a.table.GetRowCount() > 1 {
		a.table.RemoveRow(1)
	}
	for i, gw := range gws {
		row := i + 1
		state := "not connected"
		if info, ok := live[gw.Gateway]; ok {
			state = info.State
		}
		a.table.SetCell(row, 0, tview.NewTableCell(gw.Name).SetExpansion(1))
		a.table.SetCell(row, 1, tview.NewTableCell(gw.Gateway).SetExpansion(1))
		a.table.SetCell(row, 2, tview.NewTableCell(string(gw.CPU)).SetExpansion(1))
		a.table.SetCell(row, 3, tview.NewTableCell(state).SetExpansion(1))
	}
}

func (a *app) onSelectGateway(row, col int) {
	if row <= 0 {
		return
	}
	name := a.table.GetCell(row, 0).Text
	a.selected = a.cfg.ByName(name)
	a.tv.SetFocus(a.input)
}

func (a *app) readSelectedTag(tagName string) {
	if a.selected == nil {
		a.status.SetText("[red]select a gateway first[-]")
		return
	}
	if tagName == "" {
		return
	}
	gw := a.selected
	a.status.SetText(fmt.Sprintf("reading %s:%s ...", gw.Name, tagName))

	go func() {
		t, err := tag.CreateFromOptions(&attrstring.CreateOptions{
			Protocol:             "ab_eip",
			Gateway:              gw.Gateway,
			Path:                 gw.Path,
			CPU:                  string(gw.CPU),
			Name:                 tagName,
			ElemCount:            1,
			ReadCacheMs:          gw.ReadCacheMs,
			ShareSession:         true,
			ConnectionGroupID:    gw.ConnectionGroupID,
			ForwardOpenExEnabled: gw.ForwardOpenEx,
			IdleTimeoutMs:        int(gw.EffectiveIdleTimeout().Milliseconds()),
		})
		if err != nil {
			a.tv.QueueUpdateDraw(func() {
				a.status.SetText(fmt.Sprintf("[red]%v[-]", err))
			})
			return
		}
		defer t.Close()

		readErr := t.Read(tag.DefaultRequestTimeoutMs)
		a.tv.QueueUpdateDraw(func() {
			if readErr != nil {
				a.status.SetText(fmt.Sprintf("[red]%v[-]", readErr))
				return
			}
			a.value.SetText(hex.Dump(t.Raw()))
			a.status.SetText(fmt.Sprintf("[green]ok[-] (%d bytes)", t.Size()))
			a.refreshTable()
		})
	}()
}

func (a *app) pollLoop() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		a.tv.QueueUpdateDraw(a.refreshTable)
	}
}

func (a *app) Run() error {
	return a.tv.Run()
}
