// Package tui is the interactive ask screen: a query box, a k box, the
// generated answer and a browsable list of the retrieved chunks.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/retrieval"
	"docrag/internal/service"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	Ask(ctx context.Context, query string, k int) (service.Answer, error)
}

type answerMsg struct {
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	asker     Asker
	defaultK  int
	query     textinput.Model
	k         textinput.Model
	viewport  viewport.Model
	answer    service.Answer
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model. summary is shown under the header.
func New(ctx context.Context, asker Asker, summary string, defaultK int) Model {
	if defaultK <= 0 {
		defaultK = retrieval.DefaultK
	}
	q := textinput.New()
	q.Prompt = "question> "
	q.Placeholder = "Type a question and press Enter"
	q.Focus()
	q.CharLimit = 0

	k := textinput.New()
	k.Prompt = "k> "
	k.Placeholder = fmt.Sprintf("%d", defaultK)
	k.CharLimit = 4
	k.Width = 6

	return Model{
		ctx:      ctx,
		asker:    asker,
		defaultK: defaultK,
		query:    q,
		k:        k,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready. Tab switches between question and k.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = service.Answer{}
		} else {
			m.answer = msg.answer
			m.cursor = 0
			m.status = fmt.Sprintf("Top-%d results for %q", msg.answer.K, msg.answer.Query)
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab", "shift+tab":
			if m.query.Focused() {
				m.query.Blur()
				m.k.Focus()
			} else {
				m.k.Blur()
				m.query.Focus()
			}
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.query.Value())
			if q == "" || m.busy {
				return m, nil
			}
			k, ok := retrieval.ParseK(m.k.Value(), m.defaultK)
			m.status = "Retrieving..."
			if !ok && strings.TrimSpace(m.k.Value()) != "" {
				m.status = fmt.Sprintf("Invalid input. Defaulting to %d. Retrieving...", k)
			}
			m.busy = true
			m.lastQuery = q
			return m, m.ask(q, k)
		case "down":
			if n := len(m.answer.Results); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.answer.Results); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	if m.query.Focused() {
		m.query, cmd = m.query.Update(msg)
	} else {
		m.k, cmd = m.k.Update(msg)
	}
	return m, cmd
}

func (m Model) ask(query string, k int) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.asker.Ask(m.ctx, query, k)
		return answerMsg{answer: ans, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Document Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.query.View() + "   " + m.k.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if m.answer.Text == "" && len(m.answer.Results) == 0 {
		return "No results yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(m.answer.Text)
	b.WriteString("\n\n")
	if len(m.answer.Results) == 0 {
		b.WriteString("No chunks retrieved.")
		return b.String()
	}
	r := m.answer.Results[m.cursor]
	fmt.Fprintf(&b, "Chunk %d/%d  score=%.3f", m.cursor+1, len(m.answer.Results), r.Score)
	if src := r.Record.Metadata[service.MetaSource]; src != "" {
		fmt.Fprintf(&b, "  %s#%s", src, r.Record.Metadata[service.MetaBlock])
	}
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(r.Record.Text, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
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
