package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattmezza/biopatch/internal/account"
	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/dashboard"
	"github.com/mattmezza/biopatch/internal/insights"
	"github.com/mattmezza/biopatch/internal/state"
)

type screen int

const (
	screenLanding screen = iota
	screenSignup
	screenLogin
	screenDashboard
)

// Signup form focus order: three text inputs, then the two checkboxes.
const (
	fieldName = iota
	fieldEmail
	fieldPassword
	fieldTerms
	fieldConsent
	signupFields
)

const (
	loginEmail = iota
	loginPassword
	loginFields
)

// Options wires the terminal UI to the application.
type Options struct {
	Dashboard *dashboard.Dashboard
	Accounts  *account.Registry
	Insights  *insights.Generator
	Clock     clock.Clock
	OnEnter   func(user string)
}

// Model is the Bubble Tea model for the whole app.
type Model struct {
	dash     *dashboard.Dashboard
	accounts *account.Registry
	gen      *insights.Generator
	clock    clock.Clock
	onEnter  func(user string)

	events      <-chan alerter.AlertEvent
	unsubscribe func()

	screen screen
	width  int
	height int

	signup      []textinput.Model
	agreed      bool
	consent     bool
	signupFocus int
	login       []textinput.Model
	loginFocus  int
	statusText  string
	errorText   string
	snap        state.Snapshot
	samples     []insights.Sample
}

func New(opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Insights == nil {
		opts.Insights = insights.NewGenerator(opts.Clock.Now().UnixNano())
	}
	if opts.Accounts == nil {
		opts.Accounts = account.NewRegistry()
	}

	events, unsubscribe := subscribe(opts.Dashboard)
	m := Model{
		dash:        opts.Dashboard,
		accounts:    opts.Accounts,
		gen:         opts.Insights,
		clock:       opts.Clock,
		onEnter:     opts.OnEnter,
		events:      events,
		unsubscribe: unsubscribe,
		signup: []textinput.Model{
			newInput("Name", false),
			newInput("Email", false),
			newInput("Password", true),
		},
		login: []textinput.Model{
			newInput("Email", false),
			newInput("Password", true),
		},
	}
	m.snap = m.dash.Snapshot()
	return m
}

func newInput(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	ti.Width = 32
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

// Close detaches the model from the dashboard.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEventsCmd(m.events), refreshTickCmd(), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case alertEventsMsg:
		m.refresh()
		return m, waitForEventsCmd(m.events)

	case refreshTickMsg:
		m.refresh()
		return m, refreshTickCmd()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenLanding:
			return m.updateLanding(msg)
		case screenSignup:
			return m.updateSignup(msg)
		case screenLogin:
			return m.updateLogin(msg)
		case screenDashboard:
			return m.updateDashboard(msg)
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	m.snap = m.dash.Snapshot()
}

func (m Model) updateLanding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "c", "enter":
		m.screen = screenSignup
		m.errorText = ""
		return m, m.focusSignup(fieldName)
	case "l":
		m.screen = screenLogin
		m.errorText = ""
		return m, m.focusLogin(loginEmail)
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateSignup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenLanding
		return m, nil
	case "tab", "down":
		return m, m.focusSignup((m.signupFocus + 1) % signupFields)
	case "shift+tab", "up":
		return m, m.focusSignup((m.signupFocus + signupFields - 1) % signupFields)
	case "enter":
		return m.submitSignup()
	case " ":
		switch m.signupFocus {
		case fieldTerms:
			m.agreed = !m.agreed
			return m, nil
		case fieldConsent:
			m.consent = !m.consent
			return m, nil
		}
	}

	if m.signupFocus < len(m.signup) {
		var cmd tea.Cmd
		m.signup[m.signupFocus], cmd = m.signup[m.signupFocus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) submitSignup() (tea.Model, tea.Cmd) {
	user, err := m.accounts.Register(account.Signup{
		Name:        m.signup[fieldName].Value(),
		Email:       m.signup[fieldEmail].Value(),
		Password:    m.signup[fieldPassword].Value(),
		AgreedTerms: m.agreed,
		DataConsent: m.consent,
	})
	if err != nil {
		m.errorText = capitalize(err.Error()) + "."
		return m, nil
	}
	m.enter(dashboard.EnterOptions{User: user.Name, NewAccount: true})
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenLanding
		return m, nil
	case "tab", "down", "shift+tab", "up":
		return m, m.focusLogin((m.loginFocus + 1) % loginFields)
	case "enter":
		user, err := m.accounts.Login(m.login[loginEmail].Value(), m.login[loginPassword].Value())
		if err != nil {
			m.errorText = capitalize(err.Error()) + "."
			return m, nil
		}
		m.enter(dashboard.EnterOptions{User: user.Name})
		return m, nil
	}

	var cmd tea.Cmd
	m.login[m.loginFocus], cmd = m.login[m.loginFocus].Update(msg)
	return m, cmd
}

func (m *Model) enter(opts dashboard.EnterOptions) {
	if m.onEnter != nil {
		m.onEnter(opts.User)
	}
	m.dash.Enter(opts)
	m.screen = screenDashboard
	m.errorText = ""
	m.statusText = ""
	m.samples = m.gen.Last24h(m.clock.Now())
	for i := range m.login {
		m.login[i].Reset()
	}
	m.signup[fieldPassword].Reset()
	m.refresh()
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "s":
		m.dash.Leave()
		m.screen = screenLanding
		m.statusText = ""
		m.refresh()
		return m, nil
	case "a", "r":
		active := m.snap.ActiveAlerts()
		if len(active) == 0 {
			m.statusText = "No active alert."
			return m, nil
		}
		m.command(key, active[0])
	case "d":
		m.reportErr(m.dash.RunDiagnostics())
		m.statusText = "Diagnostics requested."
	case "e":
		m.reportErr(m.dash.ExportAnonymizedData())
		m.statusText = "Anonymized data exported."
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.approveIssue(int(key[0] - '1'))
		}
	}
	m.refresh()
	return m, nil
}

func (m *Model) command(key string, alert state.AlertView) {
	if key == "a" {
		ok, err := m.dash.ApproveNow(alert.Kind)
		m.reportErr(err)
		if ok {
			m.statusText = "Treatment approved."
		}
		return
	}
	_, ok, err := m.dash.RejectNow(alert.Kind)
	m.reportErr(err)
	if ok {
		m.statusText = "Treatment rejected. Added to issues list."
	}
}

func (m *Model) approveIssue(index int) {
	if index >= len(m.snap.Issues) {
		m.statusText = fmt.Sprintf("No issue #%d.", index+1)
		return
	}
	ok, err := m.dash.ApproveIssue(m.snap.Issues[index].ID)
	m.reportErr(err)
	if ok {
		m.statusText = "Issue approved."
	}
}

func (m *Model) reportErr(err error) {
	if err != nil {
		m.errorText = err.Error()
	}
}

func (m *Model) focusSignup(i int) tea.Cmd {
	m.signupFocus = i
	var cmd tea.Cmd
	for j := range m.signup {
		if j == i {
			cmd = m.signup[j].Focus()
		} else {
			m.signup[j].Blur()
		}
	}
	return cmd
}

func (m *Model) focusLogin(i int) tea.Cmd {
	m.loginFocus = i
	var cmd tea.Cmd
	for j := range m.login {
		if j == i {
			cmd = m.login[j].Focus()
		} else {
			m.login[j].Blur()
		}
	}
	return cmd
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
