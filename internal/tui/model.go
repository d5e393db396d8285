// Package tui is the interactive terminal front end.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/domain"
)

// Options configures the TUI.
type Options struct {
	Title   string
	K       int
	Model   string
	Timeout time.Duration
}

type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

type ingestMsg struct {
	path   string
	result domain.IngestResult
	err    error
}

type statsMsg struct {
	stats domain.StoreStats
	err   error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  domain.RAGService
	readFile func(string) ([]byte, error)
	opts     Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	answer       *domain.Answer
	lastQuestion string
	summary      string
	stats        string
	status       string
	busy         bool
	ready        bool
}

// New creates a new TUI model over a local or remote service.
func New(service domain.RAGService, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "PDF RAG"
	}
	if opts.K <= 0 {
		opts.K = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or :ingest <file.pdf> [source]"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		service:  service,
		readFile: os.ReadFile,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. :help lists commands.",
	}
}

// Init starts the cursor blink and loads index stats.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.fetchStats()) }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // header, stats, summary + status + input box + spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			if strings.HasPrefix(line, ":") {
				return m.command(line)
			}
			m.busy = true
			m.lastQuestion = line
			m.status = fmt.Sprintf("Asking (k=%d)...", m.opts.K)
			return m, tea.Batch(m.spinner.Tick, m.ask(line))
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.answer = &msg.answer
		m.status = fmt.Sprintf("Answered %q from %d chunks", msg.question, len(msg.answer.Sources))
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil
	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Ingest failed: " + msg.err.Error()
			return m, nil
		}
		if msg.result.Chunks == 0 {
			m.status = fmt.Sprintf("No text extracted from %s", msg.path)
			return m, nil
		}
		m.summary = msg.result.Summary
		m.status = fmt.Sprintf("Ingested %d chunks from %s", msg.result.Chunks, msg.path)
		return m, m.fetchStats()
	case statsMsg:
		if msg.err != nil {
			m.stats = "index unavailable: " + msg.err.Error()
		} else {
			m.stats = fmt.Sprintf("%d chunks from %d sources  dim=%d  %s", msg.stats.Entries, len(msg.stats.Sources), msg.stats.Dimension, msg.stats.Embedder)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit":
		return m, tea.Quit
	case ":k":
		if len(fields) != 2 {
			m.status = "Usage: :k N"
			return m, nil
		}
		k, err := strconv.Atoi(fields[1])
		if err != nil || k <= 0 {
			m.status = "k must be a positive integer"
			return m, nil
		}
		m.opts.K = k
		m.status = fmt.Sprintf("Retrieving %d chunks per question", k)
	case ":model":
		if len(fields) > 2 {
			m.status = "Usage: :model [NAME]"
			return m, nil
		}
		m.opts.Model = ""
		if len(fields) == 2 {
			m.opts.Model = fields[1]
		}
		m.status = "Model: " + m.modelName()
	case ":ingest":
		if len(fields) < 2 {
			m.status = "Usage: :ingest <file.pdf> [source]"
			return m, nil
		}
		path := fields[1]
		source := strings.Join(fields[2:], " ")
		if source == "" {
			source = filepath.Base(path)
		}
		m.busy = true
		m.status = "Ingesting " + path + "..."
		return m, tea.Batch(m.spinner.Tick, m.ingest(path, source))
	case ":stats":
		return m, m.fetchStats()
	case ":help":
		m.status = ":ingest <file> [source]  :k N  :model [NAME]  :stats  :q"
	default:
		m.status = "Unknown command " + fields[0]
	}
	return m, nil
}

func (m Model) modelName() string {
	if m.opts.Model == "" {
		return "(default)"
	}
	return m.opts.Model
}

func (m Model) ask(question string) tea.Cmd {
	svc, k, model, timeout := m.service, m.opts.K, m.opts.Model, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ans, err := svc.Answer(ctx, question, k, model)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

func (m Model) ingest(path, source string) tea.Cmd {
	svc, readFile, timeout := m.service, m.readFile, m.opts.Timeout
	return func() tea.Msg {
		data, err := readFile(path)
		if err != nil {
			return ingestMsg{path: path, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := svc.Ingest(ctx, data, source)
		return ingestMsg{path: path, result: res, err: err}
	}
}

func (m Model) fetchStats() tea.Cmd {
	svc, timeout := m.service, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stats, err := svc.Stats(ctx)
		return statsMsg{stats: stats, err: err}
	}
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.opts.Title) +
		dimStyle.Render(fmt.Sprintf("  k=%d  model=%s", m.opts.K, m.modelName()))
	stats := dimStyle.Render(m.stats)
	summary := dimStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + stats + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(highlightBestSentence(m.answer.Text, m.lastQuestion))
	b.WriteString("\n\nSources:\n")
	if len(m.answer.Sources) == 0 {
		b.WriteString("  (none retrieved)\n")
	}
	for i, s := range m.answer.Sources {
		if s == "" {
			s = "(unknown)"
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence emphasises the sentence of text sharing the most words with query.
// The rest of text, including separators and trailing unpunctuated text, is kept as is.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	spans := sentenceRe.FindAllStringIndex(text, -1)
	consumed := 0
	if len(spans) > 0 {
		consumed = spans[len(spans)-1][1]
	}
	if strings.TrimSpace(text[consumed:]) != "" {
		spans = append(spans, []int{consumed, len(text)})
	}
	qTokens := toTokenSet(query)
	best, bestScore := -1, 0
	for i, sp := range spans {
		if score := tokenOverlapScore(qTokens, text[sp[0]:sp[1]]); score > bestScore {
			bestScore, best = score, i
		}
	}
	if best < 0 {
		return text
	}
	from, to := spans[best][0], spans[best][1]
	sent := text[from:to]
	lead := len(sent) - len(strings.TrimLeftFunc(sent, unicode.IsSpace))
	trail := len(strings.TrimRightFunc(sent, unicode.IsSpace))
	return text[:from+lead] + highlightStyle.Render(sent[lead:trail]) + text[from+trail:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
