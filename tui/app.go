package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiobrief/jobapi"
	"audiobrief/session"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Step represents the current screen of the app
type Step int

const (
	StepPickFile Step = iota
	StepUploading
	StepReady
)

type inputMode int

const (
	inputNone inputMode = iota
	inputQuestion
	inputSettings
)

// Deps are the session components the app drives
type Deps struct {
	Orchestrator *session.Orchestrator
	Summary      *session.SummaryController
	Chat         *session.ChatController

	// Settings pre-fill the customize form
	Settings session.Settings

	Log zerolog.Logger
}

// Options control how the app starts
type Options struct {
	// File is uploaded immediately when set
	File string

	// Dir is where the file picker starts; defaults to the working directory
	Dir string
}

type chatLine struct {
	text   string
	sender session.Sender
}

// uploadDoneMsg is sent when an upload and any background job it started end
type uploadDoneMsg struct {
	seq int
	err error

	// notice is shown when the file could not be read
	notice *errorMsg
}

// opDoneMsg is sent when a summary or chat operation returns
type opDoneMsg struct {
	op  session.Operation
	err error
}

// fileSelectedMsg is sent when a file is chosen in the picker
type fileSelectedMsg string

// App is the Bubble Tea model for an interactive transcription session
type App struct {
	step     Step
	prevStep Step
	mode     inputMode

	// UI Components
	filepicker filepicker.Model
	question   textinput.Model
	wordCount  textinput.Model
	style      textinput.Model
	spinner    spinner.Model
	progress   progress.Model
	viewport   viewport.Model

	orch    *session.Orchestrator
	summary *session.SummaryController
	chat    *session.ChatController
	log     zerolog.Logger

	// Session view
	fileName   string
	percent    float64
	status     string
	transcript string
	summaryTxt string
	messages   []chatLine
	loadingOp  session.Operation
	banner     *errorMsg

	confirm    *confirmMsg
	confirmYes bool

	uploadSeq   int
	initialFile string
	startTime   time.Time

	width    int
	height   int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the app model. ctx bounds every operation it starts.
func NewApp(ctx context.Context, deps Deps, opts Options) App {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mp3", ".mpeg", ".wav", ".ogg", ".m4a", ".webm", ".mp4"}
	fp.ShowHidden = false
	fp.ShowSize = true
	fp.Height = 12
	fp.CurrentDirectory = opts.Dir
	if fp.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			fp.CurrentDirectory = wd
		}
	}

	q := textinput.New()
	q.Placeholder = "Ask anything about the transcript"
	q.CharLimit = 500
	q.Width = 60

	settings := deps.Settings.Normalize()

	wc := textinput.New()
	wc.Prompt = "Words: "
	wc.CharLimit = 5
	wc.Width = 8
	wc.SetValue(fmt.Sprint(settings.WordCount))

	st := textinput.New()
	st.Prompt = "Style: "
	st.CharLimit = 40
	st.Width = 30
	st.SetValue(settings.Style)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorBrand)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	ctx, cancel := context.WithCancel(ctx)

	m := App{
		step:       StepPickFile,
		filepicker: fp,
		question:   q,
		wordCount:  wc,
		style:      st,
		spinner:    s,
		progress:   p,
		viewport:   viewport.New(74, 10),
		orch:       deps.Orchestrator,
		summary:    deps.Summary,
		chat:       deps.Chat,
		log:        deps.Log.With().Str("component", "tui").Logger(),
		width:      80,
		height:     24,
		ctx:        ctx,
		cancel:     cancel,
	}

	if opts.File != "" {
		m.initialFile = opts.File
		m.fileName = filepath.Base(opts.File)
		m.step = StepUploading
		m.uploadSeq = 1
		m.startTime = time.Now()
	}
	return m
}

// Init initializes the model
func (m App) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.filepicker.Init()}
	if m.initialFile != "" {
		cmds = append(cmds, m.openFile(m.uploadSeq, m.initialFile))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(20, m.width-20)
		m.viewport.Width = max(20, m.width-6)
		m.viewport.Height = max(5, m.height/3)
		m.setTranscript(m.transcript)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.confirm != nil {
			return m.handleConfirmInput(msg)
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		m.percent = msg.percent
		m.status = msg.status
		cmd := m.progress.SetPercent(msg.percent / 100)
		return m, cmd

	case transcriptMsg:
		m.setTranscript(string(msg))
		m.percent = 100
		if m.step == StepUploading {
			m.step = StepReady
		}
		return m, nil

	case summaryMsg:
		m.summaryTxt = string(msg)
		return m, nil

	case errorMsg:
		m.banner = &msg
		return m, nil

	case chatMsg:
		m.messages = append(m.messages, chatLine(msg))
		return m, nil

	case loadingMsg:
		if msg.loading {
			m.loadingOp = msg.op
		} else if m.loadingOp == msg.op {
			m.loadingOp = session.OpNone
		}
		return m, nil

	case clearMsg:
		m.setTranscript("")
		m.summaryTxt = ""
		m.messages = nil
		m.banner = nil
		m.percent = 0
		m.status = ""
		cmd := m.progress.SetPercent(0)
		return m, cmd

	case confirmMsg:
		m.confirm = &msg
		m.confirmYes = true
		return m, nil

	case fileSelectedMsg:
		m.uploadSeq++
		m.fileName = filepath.Base(string(msg))
		m.step = StepUploading
		m.startTime = time.Now()
		m.banner = nil
		return m, m.openFile(m.uploadSeq, string(msg))

	case uploadDoneMsg:
		if msg.seq != m.uploadSeq {
			return m, nil
		}
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Msg("upload ended")
		}
		if msg.notice != nil {
			m.banner = msg.notice
		}
		// a failed upload keeps the previous transcript and summary
		snap := m.orch.Session().Snapshot()
		if snap.Transcript != m.transcript {
			m.setTranscript(snap.Transcript)
			m.summaryTxt = snap.Summary
		}
		if m.step == StepUploading {
			if m.transcript != "" {
				m.step = StepReady
			} else {
				m.step = StepPickFile
			}
		}
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Str("op", msg.op.String()).Msg("operation ended")
		}
		return m, nil
	}

	if m.step == StepPickFile {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			return m, func() tea.Msg { return fileSelectedMsg(path) }
		}
		return m, cmd
	}

	return m, nil
}

func (m App) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

// handleKey handles keyboard input for the current step
func (m App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case inputQuestion:
		return m.handleQuestionInput(msg)
	case inputSettings:
		return m.handleSettingsInput(msg)
	}

	switch m.step {
	case StepPickFile:
		switch msg.String() {
		case "q":
			return m.quit()
		case "esc":
			if m.transcript != "" || m.prevStep == StepUploading {
				m.step = m.prevStep
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			return m, func() tea.Msg { return fileSelectedMsg(path) }
		}
		return m, cmd

	case StepUploading:
		switch msg.String() {
		case "q":
			return m.quit()
		case "x", "esc":
			orch := m.orch
			return m, func() tea.Msg {
				orch.Cancel()
				return nil
			}
		case "o":
			return m.openPicker()
		}

	case StepReady:
		switch msg.String() {
		case "q":
			return m.quit()
		case "o":
			return m.openPicker()
		case "s":
			m.banner = nil
			return m, m.runOp(session.OpSummarize, func(ctx context.Context) error {
				return m.summary.Summarize(ctx)
			})
		case "r":
			m.banner = nil
			settings := m.settings()
			return m, m.runOp(session.OpRegenerate, func(ctx context.Context) error {
				return m.summary.Regenerate(ctx, settings)
			})
		case "c":
			m.mode = inputSettings
			m.style.Blur()
			cmd := m.wordCount.Focus()
			return m, cmd
		case "a", "/":
			m.mode = inputQuestion
			cmd := m.question.Focus()
			return m, cmd
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m App) handleQuestionInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = inputNone
		m.question.Blur()
		return m, nil
	case "enter":
		question := m.question.Value()
		m.question.SetValue("")
		m.question.Blur()
		m.mode = inputNone
		m.banner = nil
		return m, m.runOp(session.OpAsk, func(ctx context.Context) error {
			return m.chat.Ask(ctx, question)
		})
	}

	var cmd tea.Cmd
	m.question, cmd = m.question.Update(msg)
	return m, cmd
}

func (m App) handleSettingsInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = inputNone
		m.wordCount.Blur()
		m.style.Blur()
		return m, nil
	case "tab", "shift+tab":
		var cmd tea.Cmd
		if m.wordCount.Focused() {
			m.wordCount.Blur()
			cmd = m.style.Focus()
		} else {
			m.style.Blur()
			cmd = m.wordCount.Focus()
		}
		return m, cmd
	case "enter":
		m.mode = inputNone
		m.wordCount.Blur()
		m.style.Blur()
		m.banner = nil
		settings := m.settings()
		return m, m.runOp(session.OpCustomize, func(ctx context.Context) error {
			return m.summary.Customize(ctx, settings)
		})
	}

	var cmd tea.Cmd
	if m.wordCount.Focused() {
		m.wordCount, cmd = m.wordCount.Update(msg)
	} else {
		m.style, cmd = m.style.Update(msg)
	}
	return m, cmd
}

func (m App) handleConfirmInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m.answer(true)
	case "n", "N", "esc", "q":
		return m.answer(false)
	case "left", "right", "tab", "h", "l":
		m.confirmYes = !m.confirmYes
	case "enter":
		return m.answer(m.confirmYes)
	}
	return m, nil
}

func (m App) answer(ok bool) (tea.Model, tea.Cmd) {
	m.confirm.reply <- ok
	m.confirm = nil
	return m, nil
}

func (m App) openPicker() (tea.Model, tea.Cmd) {
	m.prevStep = m.step
	m.step = StepPickFile
	return m, m.filepicker.Init()
}

// openFile loads path and submits it, replacing any upload in flight.
// It runs off the Update loop because the session reports back through
// the program.
func (m App) openFile(seq int, path string) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		file, err := jobapi.FileFromPath(path)
		if err != nil {
			return uploadDoneMsg{seq: seq, err: err, notice: &errorMsg{kind: session.Validation, text: err.Error()}}
		}
		err = orch.Supersede(ctx, &file)
		if err == nil {
			err = orch.Wait(ctx)
		}
		return uploadDoneMsg{seq: seq, err: err}
	}
}

func (m App) runOp(op session.Operation, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m App) settings() session.Settings {
	return session.ParseSettings(m.wordCount.Value(), m.style.Value())
}

func (m *App) setTranscript(text string) {
	m.transcript = text
	wrapped := lipgloss.NewStyle().Width(max(10, m.viewport.Width-2)).Render(text)
	m.viewport.SetContent(wrapped)
}

// View renders the UI
func (m App) View() string {
	if m.quitting {
		return MutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	b.WriteString(GetHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStepIndicator())
	b.WriteString("\n\n")

	if m.banner != nil {
		b.WriteString(m.renderBanner())
		b.WriteString("\n")
	}

	switch {
	case m.confirm != nil:
		b.WriteString(m.renderConfirm())
	case m.step == StepPickFile:
		b.WriteString(m.renderPicker())
	case m.step == StepUploading:
		b.WriteString(m.renderUploading())
	case m.step == StepReady:
		b.WriteString(m.renderReady())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

// renderStepIndicator shows where the session is
func (m App) renderStepIndicator() string {
	steps := []struct {
		name   string
		active bool
		done   bool
	}{
		{"Choose file", m.step >= StepPickFile, m.step > StepPickFile || m.transcript != ""},
		{"Transcribe", m.step >= StepUploading || m.transcript != "", m.transcript != ""},
		{"Summarize & ask", m.step == StepReady, m.summaryTxt != "" || len(m.messages) > 0},
	}

	var parts []string
	for i, s := range steps {
		var style lipgloss.Style
		var icon string

		if s.done {
			icon = "[x]"
			style = lipgloss.NewStyle().Foreground(ColorSuccess)
		} else if s.active {
			icon = "[>]"
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		} else {
			icon = "[ ]"
			style = lipgloss.NewStyle().Foreground(ColorMuted)
		}

		parts = append(parts, style.Render(icon+" "+s.name))

		if i < len(steps)-1 {
			color := ColorBorder
			if s.done {
				color = ColorSuccess
			}
			parts = append(parts, lipgloss.NewStyle().Foreground(color).Render("---"))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m App) renderBanner() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1).
		Render(KindBadge(m.banner.kind) + " " + ErrorStyle.Render(m.banner.text))
}

func (m App) renderPicker() string {
	title := TitleStyle.Render("Select an audio file")
	desc := MutedStyle.Render("Supported formats: " + session.SupportedFormats)

	return BoxStyle.Render(title + "\n" + desc + "\n\n" + m.filepicker.View())
}

func (m App) renderConfirm() string {
	title := TitleStyle.Render(m.confirm.title)

	yesStyle := lipgloss.NewStyle().Padding(0, 2)
	noStyle := lipgloss.NewStyle().Padding(0, 2)
	if m.confirmYes {
		yesStyle = yesStyle.Background(ColorSuccess).Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
		noStyle = noStyle.Foreground(ColorMuted)
	} else {
		noStyle = noStyle.Background(ColorError).Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
		yesStyle = yesStyle.Foreground(ColorMuted)
	}

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Center,
		yesStyle.Render("Yes"),
		"  ",
		noStyle.Render("No"),
	)

	detail := BodyStyle.Width(max(20, m.width-10)).Render(m.confirm.detail)
	return BoxStyle.Render(title + "\n" + detail + "\n\n" + buttons)
}

func (m App) renderUploading() string {
	title := TitleStyle.Render("Transcribing " + m.fileName)

	status := m.status
	if status == "" {
		status = "Preparing upload..."
	}

	elapsed := MutedStyle.Render(fmt.Sprintf("Elapsed: %s", formatDuration(time.Since(m.startTime))))

	return BoxStyle.Render(
		title + "\n\n" +
			m.spinner.View() + " " + BodyStyle.Render(status) + "\n\n" +
			m.progress.View() + "\n" +
			elapsed,
	)
}

func (m App) renderReady() string {
	var b strings.Builder

	b.WriteString(FocusedBoxStyle.Render(
		SubtitleStyle.Bold(true).Render("Transcript") + "\n" + m.viewport.View(),
	))
	b.WriteString("\n")

	b.WriteString(m.renderSummary())
	b.WriteString("\n")

	b.WriteString(m.renderChat())
	return b.String()
}

func (m App) renderSummary() string {
	title := SubtitleStyle.Bold(true).Render("Summary")

	var body string
	switch {
	case m.loading(session.OpSummarize, session.OpRegenerate, session.OpCustomize):
		body = m.spinner.View() + " " + MutedStyle.Render("Generating summary...")
	case m.summaryTxt != "":
		body = BodyStyle.Width(max(20, m.width-8)).Render(m.summaryTxt)
	default:
		body = MutedStyle.Render("Press s to summarize")
	}

	if m.mode == inputSettings {
		body += "\n\n" + m.wordCount.View() + "   " + m.style.View()
		if m.orch.Session().SettingsStale(m.settings()) {
			body += "\n" + WarningStyle.Render("Press enter to apply these settings")
		}
	} else if snap := m.orch.Session().Snapshot(); snap.AppliedSettings != nil && m.orch.Session().SettingsStale(m.settings()) {
		body += "\n" + WarningStyle.Render("Settings changed since the last customized summary")
	}

	return BoxStyle.Render(title + "\n" + body)
}

func (m App) renderChat() string {
	title := SubtitleStyle.Bold(true).Render("Questions")

	var lines []string
	for _, msg := range m.messages {
		lines = append(lines, SenderBadge(msg.sender)+" "+BodyStyle.Render(msg.text))
	}
	if m.loading(session.OpAsk) {
		lines = append(lines, m.spinner.View()+" "+MutedStyle.Render("Thinking..."))
	}
	if len(lines) == 0 {
		lines = append(lines, MutedStyle.Render("Press a to ask a question"))
	}
	if m.mode == inputQuestion {
		lines = append(lines, "", m.question.View())
	}

	return BoxStyle.Render(title + "\n" + strings.Join(lines, "\n"))
}

func (m App) loading(ops ...session.Operation) bool {
	for _, op := range ops {
		if m.loadingOp == op {
			return true
		}
	}
	return false
}

// renderHelp renders context-sensitive help
func (m App) renderHelp() string {
	var keys []string

	switch {
	case m.confirm != nil:
		keys = append(keys, "y", "Yes", "n", "No", "tab", "Switch")
	case m.mode == inputQuestion:
		keys = append(keys, "enter", "Ask", "esc", "Back")
	case m.mode == inputSettings:
		keys = append(keys, "tab", "Next field", "enter", "Apply", "esc", "Back")
	case m.step == StepPickFile:
		keys = append(keys, "j/k", "Navigate", "enter", "Select", "h/l", "Go up/down")
		if m.transcript != "" || m.prevStep == StepUploading {
			keys = append(keys, "esc", "Back")
		}
		keys = append(keys, "q", "Quit")
	case m.step == StepUploading:
		keys = append(keys, "x", "Cancel", "o", "Another file", "q", "Quit")
	case m.step == StepReady:
		keys = append(keys, "s", "Summarize", "r", "Regenerate", "c", "Customize",
			"a", "Ask", "o", "Another file", "q", "Quit")
	}

	return KeyHelp(keys...)
}

// Getter methods for external access
func (m App) Step() Step          { return m.step }
func (m App) IsQuitting() bool    { return m.quitting }
func (m App) Transcript() string  { return m.transcript }
func (m App) SummaryText() string { return m.summaryTxt }

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// Run runs the interactive app until the user quits
func Run(ctx context.Context, bridge *Bridge, deps Deps, opts Options) error {
	model := NewApp(ctx, deps, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	bridge.Attach(p.Send)
	defer bridge.Attach(nil)

	_, err := p.Run()

	// stop background work before the bridge detaches
	deps.Orchestrator.Cancel()
	return err
}
