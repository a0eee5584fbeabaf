package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/name1e5s/uniffi-go/arena"
	"github.com/name1e5s/uniffi-go/buffer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	bufStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const helpText = `alloc <size>       allocate an owned buffer
write <text>       append text through the writer
u32 <value>        append a big-endian u32 through the writer
u64 <value>        append a big-endian u64 through the writer
finalize           commit the writer into the ledger
discard            abandon the writer and free its buffer
reserve <idx> <n>  grow buffer idx by n bytes
view <idx>         hexdump buffer idx
free <idx>         release buffer idx
stats              bridge and arena counters
reset              drop everything and start over
quit               exit`

// inspectorModel drives a live bridge over an in-process arena, so the
// allocator contract can be poked at by hand.
type inspectorModel struct {
	arena  *arena.Arena
	bridge *buffer.Bridge
	writer *buffer.Writer
	bufs   []buffer.Buffer
	input  textinput.Model
	output string
	failed bool
}

func newInspectorModel() *inspectorModel {
	a := arena.New()

	ti := textinput.New()
	ti.Placeholder = "alloc 32"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	return &inspectorModel{
		arena:  a,
		bridge: buffer.NewBridge(a, a),
		input:  ti,
		output: "Type help for commands.",
	}
}

func (m *inspectorModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "q" {
				return m, tea.Quit
			}
			out, err := m.execute(line)
			if err != nil {
				m.output = err.Error()
				m.failed = true
			} else {
				m.output = out
				m.failed = false
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inspectorModel) execute(line string) (string, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		return helpText, nil

	case "alloc":
		size, err := argU32(args, 0)
		if err != nil {
			return "", err
		}
		var st buffer.Status
		buf := m.bridge.Allocate(size, &st)
		if err := buffer.Check(m.bridge, &st); err != nil {
			return "", err
		}
		m.bufs = append(m.bufs, buf)
		return fmt.Sprintf("buffer %d: cap=%d data=0x%x", len(m.bufs)-1, buf.Cap, buf.Data), nil

	case "write":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: write <text>")
		}
		w, err := m.ensureWriter()
		if err != nil {
			return "", err
		}
		if err := w.WriteBytes([]byte(strings.Join(args, " "))); err != nil {
			return "", err
		}
		return fmt.Sprintf("writer: pos=%d cap=%d", w.Pos(), w.Cap()), nil

	case "u32":
		v, err := argU32(args, 0)
		if err != nil {
			return "", err
		}
		w, err := m.ensureWriter()
		if err != nil {
			return "", err
		}
		if err := w.WriteU32(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("writer: pos=%d cap=%d", w.Pos(), w.Cap()), nil

	case "u64":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: u64 <value>")
		}
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("%q is not a u64", args[0])
		}
		w, err := m.ensureWriter()
		if err != nil {
			return "", err
		}
		if err := w.WriteU64(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("writer: pos=%d cap=%d", w.Pos(), w.Cap()), nil

	case "finalize":
		if m.writer == nil {
			return "", fmt.Errorf("no writer in progress")
		}
		buf := m.writer.Finalize()
		m.writer = nil
		m.bufs = append(m.bufs, buf)
		return fmt.Sprintf("buffer %d: len=%d cap=%d data=0x%x", len(m.bufs)-1, buf.Len, buf.Cap, buf.Data), nil

	case "discard":
		if m.writer == nil {
			return "", fmt.Errorf("no writer in progress")
		}
		m.writer.Discard()
		m.writer = nil
		return "writer discarded", nil

	case "reserve":
		idx, err := m.argIndex(args, 0)
		if err != nil {
			return "", err
		}
		additional, err := argU32(args, 1)
		if err != nil {
			return "", err
		}
		var st buffer.Status
		grown := m.bridge.Reserve(m.bufs[idx], additional, &st)
		if err := buffer.Check(m.bridge, &st); err != nil {
			return "", err
		}
		m.bufs[idx] = grown
		return fmt.Sprintf("buffer %d: len=%d cap=%d data=0x%x", idx, grown.Len, grown.Cap, grown.Data), nil

	case "view":
		idx, err := m.argIndex(args, 0)
		if err != nil {
			return "", err
		}
		buf := m.bufs[idx]
		if buf.Len == 0 {
			return fmt.Sprintf("buffer %d holds no data (cap=%d)", idx, buf.Cap), nil
		}
		data, err := m.bridge.Memory().Read(buf.Data, buf.Len)
		if err != nil {
			return "", err
		}
		return hexdump(data), nil

	case "free":
		idx, err := m.argIndex(args, 0)
		if err != nil {
			return "", err
		}
		var st buffer.Status
		m.bridge.Free(m.bufs[idx], &st)
		if err := buffer.Check(m.bridge, &st); err != nil {
			return "", err
		}
		m.bufs = append(m.bufs[:idx], m.bufs[idx+1:]...)
		return fmt.Sprintf("buffer %d freed", idx), nil

	case "stats":
		bs := m.bridge.Stats()
		as := m.arena.Stats()
		return fmt.Sprintf(
			"bridge: allocates=%d reserves=%d frees=%d\narena:  live=%d (%d bytes) allocs=%d frees=%d space=%d high=0x%x",
			bs.Allocates, bs.Reserves, bs.Frees,
			as.LiveAllocs, as.LiveBytes, as.TotalAllocs, as.TotalFrees, as.SpaceSize, as.HighWater), nil

	case "reset":
		a := arena.New()
		m.arena = a
		m.bridge = buffer.NewBridge(a, a)
		m.writer = nil
		m.bufs = nil
		return "fresh arena", nil

	default:
		return "", fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (m *inspectorModel) ensureWriter() (*buffer.Writer, error) {
	if m.writer != nil {
		return m.writer, nil
	}
	w, err := buffer.NewWriter(m.bridge)
	if err != nil {
		return nil, err
	}
	m.writer = w
	return w, nil
}

func argU32(args []string, i int) (uint32, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument")
	}
	v, err := strconv.ParseUint(args[i], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a u32", args[i])
	}
	return uint32(v), nil
}

func (m *inspectorModel) argIndex(args []string, i int) (int, error) {
	v, err := argU32(args, i)
	if err != nil {
		return 0, err
	}
	if int(v) >= len(m.bufs) {
		return 0, fmt.Errorf("no buffer %d, ledger holds %d", v, len(m.bufs))
	}
	return int(v), nil
}

func hexdump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Fprintf(&b, "%08x  ", off)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02x ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c < 32 || c > 126 {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteString("|")
		if end < len(data) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("uniffi buffer inspector"))
	b.WriteString("\n\n")

	b.WriteString("Buffers:\n")
	if len(m.bufs) == 0 {
		b.WriteString(helpStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for i, buf := range m.bufs {
		b.WriteString(fmt.Sprintf("  %s cap=%-6d len=%-6d %s\n",
			bufStyle.Render(fmt.Sprintf("[%d]", i)),
			buf.Cap, buf.Len,
			addrStyle.Render(fmt.Sprintf("0x%08x", buf.Data))))
	}

	if m.writer != nil {
		b.WriteString(fmt.Sprintf("\nWriter: pos=%d cap=%d\n", m.writer.Pos(), m.writer.Cap()))
	}

	b.WriteString("\n")
	if m.failed {
		b.WriteString(errorStyle.Render(m.output))
	} else {
		b.WriteString(okStyle.Render(m.output))
	}
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • esc quit"))

	return b.String()
}

func runInteractive() error {
	p := tea.NewProgram(newInspectorModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
