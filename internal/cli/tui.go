package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/partree/partree/pkg/pipeline"
)

// =============================================================================
// searchModel - Live search progress
// =============================================================================

// resultMsg carries the pipeline outcome back into the model.
type resultMsg struct {
	res *pipeline.Result
	err error
}

// tickMsg drives the spinner animation.
type tickMsg time.Time

// searchModel is the bubbletea model shown while a search runs.
type searchModel struct {
	input   string
	start   time.Time
	frame   int
	result  *pipeline.Result
	err     error
	done    bool
	aborted bool
	cancel  context.CancelFunc
	resCh   chan resultMsg
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// runSearchTUI executes the pipeline behind a live progress display.
func runSearchTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := searchModel{
		input:  opts.AlignmentPath,
		start:  time.Now(),
		cancel: cancel,
		resCh:  make(chan resultMsg, 1),
	}

	go func() {
		res, err := runner.Execute(searchCtx, opts)
		m.resCh <- resultMsg{res: res, err: err}
	}()

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}

	fm := final.(searchModel)
	if fm.aborted {
		return nil, context.Canceled
	}
	return fm.result, fm.err
}

func (m searchModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.wait())
}

// tick schedules the next animation frame.
func (m searchModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// wait blocks on the pipeline result channel.
func (m searchModel) wait() tea.Cmd {
	return func() tea.Msg {
		return <-m.resCh
	}
}

func (m searchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			m.cancel()
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, m.tick()
	case resultMsg:
		m.done = true
		m.result = msg.res
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m searchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("partree search"))
	b.WriteString("\n\n")

	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	switch {
	case m.aborted:
		b.WriteString(styleIconError.Render(iconError) + " aborted\n")
	case m.done && m.err != nil:
		b.WriteString(styleIconError.Render(iconError) + " " + m.err.Error() + "\n")
	case m.done:
		b.WriteString(styleIconSuccess.Render(iconSuccess) + " done ")
		b.WriteString(StyleDim.Render(fmt.Sprintf("(%s)", elapsed)))
		b.WriteString("\n")
	default:
		frame := spinnerFrames[m.frame%len(spinnerFrames)]
		b.WriteString(styleIconSpinner.Render(frame) + " ")
		b.WriteString(StyleDim.Render(fmt.Sprintf("searching %s  %s", m.input, elapsed)))
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render("q: abort"))
		b.WriteString("\n")
	}

	if m.done && m.result != nil {
		b.WriteString("\n")
		b.WriteString(renderResultBox(m.result))
		b.WriteString("\n")
	}

	return b.String()
}

// List styles shared with other interactive views.
var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// renderResultBox formats the search outcome as a bordered summary.
func renderResultBox(res *pipeline.Result) string {
	label := lipgloss.NewStyle().Foreground(colorGray).Width(10)
	value := lipgloss.NewStyle().Foreground(colorWhite)

	lines := []string{
		label.Render("score") + value.Render(fmt.Sprintf("%d", res.Score)),
		label.Render("swaps") + value.Render(fmt.Sprintf("%d", res.Swaps)),
		label.Render("taxa") + value.Render(fmt.Sprintf("%d", res.Stats.Taxa)),
		label.Render("patterns") + value.Render(fmt.Sprintf("%d", res.Stats.Patterns)),
	}
	if res.CacheInfo.SearchHit {
		lines = append(lines, label.Render("source")+styleCached.Render(iconCached))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDim).
		Padding(0, 1)
	return box.Render(strings.Join(lines, "\n"))
}
