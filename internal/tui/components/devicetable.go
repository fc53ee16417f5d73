package components

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	fli "github.com/openastro/go-fli"
	"github.com/openastro/go-fli/internal/tui/styles"
)

const (
	columnKeyName   = "name"
	columnKeyType   = "type"
	columnKeyModel  = "model"
	columnKeySerial = "serial"
	columnKeyOpen   = "open"
)

// DeviceTable lists discovered devices, with a marker on the one the
// monitor has open.
type DeviceTable struct {
	table    table.Model
	devices  []fli.DeviceInfo
	openName string
}

func NewDeviceTable(width int) *DeviceTable {
	columns := []table.Column{
		table.NewColumn(columnKeyOpen, " ", 3),
		table.NewColumn(columnKeyName, "Name", 12),
		table.NewColumn(columnKeyType, "Domain", 16),
		table.NewFlexColumn(columnKeyModel, "Model", 3),
		table.NewFlexColumn(columnKeySerial, "Serial", 2),
	}

	t := table.New(columns).
		Focused(true).
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(styles.Text).
			BorderForeground(styles.Surface2).
			Align(lipgloss.Left)).
		HeaderStyle(lipgloss.NewStyle().
			Foreground(styles.Subtext1).
			Bold(true)).
		HighlightStyle(lipgloss.NewStyle().
			Foreground(styles.Text).
			Background(styles.Surface1)).
		WithPageSize(4)

	if width > 0 {
		t = t.WithTargetWidth(width)
	}

	return &DeviceTable{table: t}
}

func (dt *DeviceTable) SetWidth(width int) {
	dt.table = dt.table.WithTargetWidth(width)
}

// SetDevices replaces the table contents. openName marks the device the
// monitor currently holds a session on.
func (dt *DeviceTable) SetDevices(devices []fli.DeviceInfo, openName string) {
	dt.devices = devices
	dt.openName = openName

	rows := make([]table.Row, 0, len(devices))
	for _, dev := range devices {
		marker := ""
		if dev.Name == openName {
			marker = "●"
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyOpen:   marker,
			columnKeyName:   dev.Name,
			columnKeyType:   dev.Domain.String(),
			columnKeyModel:  dev.Model,
			columnKeySerial: dev.Serial,
		}))
	}
	dt.table = dt.table.WithRows(rows)
}

// Selected returns the highlighted device, if any.
func (dt *DeviceTable) Selected() (fli.DeviceInfo, bool) {
	row := dt.table.HighlightedRow()
	name, ok := row.Data[columnKeyName].(string)
	if !ok {
		return fli.DeviceInfo{}, false
	}
	for _, dev := range dt.devices {
		if dev.Name == name {
			return dev, true
		}
	}
	return fli.DeviceInfo{}, false
}

func (dt *DeviceTable) Update(msg tea.Msg) (*DeviceTable, tea.Cmd) {
	var cmd tea.Cmd
	dt.table, cmd = dt.table.Update(msg)
	return dt, cmd
}

func (dt *DeviceTable) View() string {
	return dt.table.View()
}
