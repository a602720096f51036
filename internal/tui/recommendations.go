package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/s100fed/fedroute/internal/api"
)

// RecommendationSortField is the column the recommendation table is ordered by.
type RecommendationSortField int

const (
	// SortByRank keeps the ranker's order.
	SortByRank RecommendationSortField = iota
	// SortByConfidence orders by descending confidence.
	SortByConfidence
	// SortByNode orders by node ID, then product and service.
	SortByNode
)

const numRecommendationSortFields = 3

func (f RecommendationSortField) String() string {
	switch f {
	case SortByRank:
		return "rank"
	case SortByConfidence:
		return "confidence"
	case SortByNode:
		return "node"
	default:
		return "unknown"
	}
}

// Column widths of the recommendation table.
const (
	colWidthRank     = 4
	colWidthScore    = 6
	colWidthConf     = 6
	colWidthProduct  = 8
	colWidthService  = 8
	colWidthNode     = 18
	colWidthEndpoint = 44
)

// recSummaryHeight is the number of lines above and below the table.
const recSummaryHeight = 8

// RecommendationFetcher loads recommendations; it should honor ctx cancellation.
type RecommendationFetcher func(ctx context.Context) (api.RecommendResponse, error)

// rankedRecommendation keeps the ranker's position next to the recommendation.
type rankedRecommendation struct {
	rank int
	rec  api.Recommendation
}

type recommendationsLoadedMsg struct {
	resp api.RecommendResponse
	err  error
}

// RecommendationsModel is the Bubble Tea model for browsing a recommendation response.
type RecommendationsModel struct {
	state    ViewState
	metadata api.RecommendMetadata
	all      []rankedRecommendation
	visible  []rankedRecommendation

	table      table.Model
	textInput  textinput.Model
	showFilter bool
	sortBy     RecommendationSortField

	width  int
	height int

	loading *LoadingState
	fetch   tea.Cmd

	err error
}

// NewRecommendationsModel creates a model showing resp.
func NewRecommendationsModel(resp api.RecommendResponse) *RecommendationsModel {
	m := &RecommendationsModel{
		state:     ViewStateList,
		textInput: newFilterInput(),
		width:     defaultWidth,
		height:    defaultHeight,
	}
	m.setResponse(resp)
	return m
}

// NewRecommendationsModelWithLoading creates a model that shows a spinner until fetcher returns.
func NewRecommendationsModelWithLoading(ctx context.Context, fetcher RecommendationFetcher) *RecommendationsModel {
	return &RecommendationsModel{
		state:     ViewStateLoading,
		loading:   NewLoadingState("Ranking federation services..."),
		textInput: newFilterInput(),
		table:     newRecommendationTable(nil, defaultHeight-recSummaryHeight),
		width:     defaultWidth,
		height:    defaultHeight,
		fetch: func() tea.Msg {
			resp, err := fetcher(ctx)
			return recommendationsLoadedMsg{resp: resp, err: err}
		},
	}
}

func newFilterInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "Filter by node, product, service or endpoint..."
	ti.CharLimit = filterInputCharLimit
	ti.Width = filterInputWidth
	return ti
}

// State returns the current view state.
func (m *RecommendationsModel) State() ViewState { return m.state }

// Err returns the fetch error that ended the session, if any.
func (m *RecommendationsModel) Err() error { return m.err }

// Visible returns the recommendations currently shown, in display order.
func (m *RecommendationsModel) Visible() []api.Recommendation {
	out := make([]api.Recommendation, len(m.visible))
	for i, r := range m.visible {
		out[i] = r.rec
	}
	return out
}

// Selected returns the recommendation under the cursor.
func (m *RecommendationsModel) Selected() (api.Recommendation, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return api.Recommendation{}, false
	}
	return m.visible[i].rec, true
}

// Init starts the fetch and the spinner when loading.
func (m *RecommendationsModel) Init() tea.Cmd {
	if m.state == ViewStateLoading {
		return tea.Batch(m.loading.Init(), m.fetch)
	}
	return nil
}

// Update handles messages and updates the model state.
func (m *RecommendationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if winMsg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = winMsg.Width
		m.height = winMsg.Height
		m.resizeTable()
		return m, nil
	}

	if loaded, ok := msg.(recommendationsLoadedMsg); ok {
		return m.handleLoaded(loaded)
	}

	if m.showFilter {
		return m.handleFilterInput(msg)
	}

	switch m.state {
	case ViewStateLoading:
		return m, m.loading.Update(msg)
	case ViewStateList:
		return m.handleListUpdate(msg)
	case ViewStateDetail:
		return m.handleDetailUpdate(msg)
	case ViewStateError, ViewStateQuitting:
		return m.handleQuitUpdate(msg)
	default:
		return m, nil
	}
}

func (m *RecommendationsModel) handleLoaded(msg recommendationsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.state = ViewStateError
		return m, tea.Quit
	}
	m.state = ViewStateList
	m.setResponse(msg.resp)
	return m, nil
}

func (m *RecommendationsModel) handleFilterInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEnter, keyEsc:
			m.showFilter = false
			m.textInput.Blur()
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *RecommendationsModel) handleListUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC:
			m.state = ViewStateQuitting
			return m, tea.Quit
		case keyEnter:
			if len(m.visible) > 0 {
				m.state = ViewStateDetail
			}
			return m, nil
		case keySlash:
			m.showFilter = true
			return m, m.textInput.Focus()
		case keyS:
			m.sortBy = (m.sortBy + 1) % numRecommendationSortFields
			m.refresh()
			return m, nil
		case keyEsc:
			if m.textInput.Value() != "" {
				m.textInput.SetValue("")
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *RecommendationsModel) handleDetailUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC:
			m.state = ViewStateQuitting
			return m, tea.Quit
		case keyEsc, keyBackspace:
			m.state = ViewStateList
		}
	}
	return m, nil
}

func (m *RecommendationsModel) handleQuitUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC, keyEsc, keyEnter:
			m.state = ViewStateQuitting
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *RecommendationsModel) setResponse(resp api.RecommendResponse) {
	m.metadata = resp.Metadata
	m.all = make([]rankedRecommendation, len(resp.Recommendations))
	for i, rec := range resp.Recommendations {
		m.all[i] = rankedRecommendation{rank: i + 1, rec: rec}
	}
	m.refresh()
}

// refresh reapplies the filter and sort and rebuilds the table.
func (m *RecommendationsModel) refresh() {
	query := strings.ToLower(strings.TrimSpace(m.textInput.Value()))
	visible := make([]rankedRecommendation, 0, len(m.all))
	for _, r := range m.all {
		if query == "" || matchesFilter(r.rec, query) {
			visible = append(visible, r)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		switch m.sortBy {
		case SortByConfidence:
			if a.rec.Confidence != b.rec.Confidence {
				return a.rec.Confidence > b.rec.Confidence
			}
		case SortByNode:
			if a.rec.Node.ID != b.rec.Node.ID {
				return a.rec.Node.ID < b.rec.Node.ID
			}
			if a.rec.Capability.ProductType != b.rec.Capability.ProductType {
				return a.rec.Capability.ProductType < b.rec.Capability.ProductType
			}
			if a.rec.Capability.ServiceType != b.rec.Capability.ServiceType {
				return a.rec.Capability.ServiceType < b.rec.Capability.ServiceType
			}
		case SortByRank:
		}
		return a.rank < b.rank
	})

	m.visible = visible
	m.table = newRecommendationTable(visible, m.tableHeight())
	m.table.SetWidth(m.width)
}

func matchesFilter(rec api.Recommendation, query string) bool {
	fields := []string{
		rec.Node.ID,
		rec.Node.Name,
		rec.Capability.ProductType,
		rec.Capability.ServiceType,
		rec.Capability.Endpoint,
	}
	if rec.Dataset != nil {
		fields = append(fields, rec.Dataset.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func (m *RecommendationsModel) tableHeight() int {
	return max(m.height-recSummaryHeight, minTableHeight)
}

func (m *RecommendationsModel) resizeTable() {
	m.table.SetHeight(m.tableHeight())
	m.table.SetWidth(m.width)
}

func newRecommendationTable(items []rankedRecommendation, height int) table.Model {
	columns := []table.Column{
		{Title: "#", Width: colWidthRank},
		{Title: "Score", Width: colWidthScore},
		{Title: "Conf", Width: colWidthConf},
		{Title: "Product", Width: colWidthProduct},
		{Title: "Service", Width: colWidthService},
		{Title: "Node", Width: colWidthNode},
		{Title: "Endpoint", Width: colWidthEndpoint},
	}

	rows := make([]table.Row, len(items))
	for i, r := range items {
		rows[i] = table.Row{
			strconv.Itoa(r.rank),
			fmt.Sprintf("%.2f", r.rec.Score),
			fmt.Sprintf("%.2f", r.rec.Confidence),
			r.rec.Capability.ProductType,
			r.rec.Capability.ServiceType,
			truncate(r.rec.Node.ID, colWidthNode),
			truncate(r.rec.Capability.Endpoint, colWidthEndpoint),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)

	return t
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// View renders the current view.
func (m *RecommendationsModel) View() string {
	switch m.state {
	case ViewStateQuitting:
		return ""
	case ViewStateError:
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	case ViewStateLoading:
		return RenderLoading(m.loading)
	case ViewStateDetail:
		if rec, ok := m.Selected(); ok {
			return RenderRecommendationDetail(rec, m.width)
		}
		return "No recommendation selected."
	case ViewStateList:
		return m.renderListView()
	default:
		return ""
	}
}

func (m *RecommendationsModel) renderListView() string {
	var header strings.Builder
	header.WriteString(HeaderStyle.Render("RECOMMENDATIONS"))
	header.WriteString("\n")
	fmt.Fprintf(&header, "Showing %d of %d ranked (%d candidates), sorted by %s\n",
		len(m.visible), len(m.all), m.metadata.TotalCandidates, m.sortBy)
	if m.metadata.Context.UserID != "" {
		fmt.Fprintf(&header, "%s %s\n", LabelStyle.Render("User:"), m.metadata.Context.UserID)
	}

	body := m.table.View()
	if len(m.visible) == 0 {
		body = "No recommendations match."
	}

	help := HelpStyle.Render("[/] Filter  [s] Sort  [↑↓/jk] Navigate  [Enter] Details  [q] Quit")
	if m.showFilter {
		return lipgloss.JoinVertical(lipgloss.Left, header.String(), body, "\nFilter: "+m.textInput.View(), help)
	}
	if v := m.textInput.Value(); v != "" {
		help = LabelStyle.Render("Filter: "+v+"  [Esc] clear") + "\n" + help
	}
	return lipgloss.JoinVertical(lipgloss.Left, header.String(), body, "", help)
}

// RenderRecommendationDetail renders every field and factor of a single recommendation.
func RenderRecommendationDetail(rec api.Recommendation, width int) string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("RECOMMENDATION DETAIL"))
	sb.WriteString("\n\n")

	line := func(label, value string) {
		fmt.Fprintf(&sb, "%s %s\n", LabelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	line("ID", rec.RecommendationID)
	line("Service", rec.Capability.ProductType+" "+rec.Capability.ServiceType)
	line("Endpoint", rec.Capability.Endpoint)
	line("Node", fmt.Sprintf("%s (%s, level %d)", rec.Node.ID, rec.Node.Name, rec.Node.Level))
	line("Health", renderHealth(rec.Node.Health))
	if rec.Dataset != nil {
		line("Dataset", fmt.Sprintf("%s [%s]", rec.Dataset.Name, rec.Dataset.Status))
	}
	line("Score", fmt.Sprintf("%.3f", rec.Score))
	line("Confidence", fmt.Sprintf("%.3f", rec.Confidence))

	sb.WriteString("\n")
	sb.WriteString(HeaderStyle.Render("FACTORS"))
	sb.WriteString("\n")
	line("Quality", fmt.Sprintf("%.3f", rec.Factors.Quality))
	line("Preference", formatFactor(rec.Factors.Preference))
	line("Context", formatFactor(rec.Factors.Context))
	line("Spatial", formatFactor(rec.Factors.Spatial))

	if len(rec.Explanations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(HeaderStyle.Render("WHY"))
		sb.WriteString("\n")
		wrap := lipgloss.NewStyle().Width(max(width-2, filterInputWidth))
		for _, e := range rec.Explanations {
			sb.WriteString(wrap.Render("- " + e))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(HelpStyle.Render("[Esc] Back to list  [q] Quit"))
	return sb.String()
}

func formatFactor(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

// RunRecommendations runs m as a full-screen program on in and out until the user quits.
// A fetch error that ended the session is returned as the program's error.
func RunRecommendations(ctx context.Context, m *RecommendationsModel, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running interactive view: %w", err)
	}
	if fm, ok := final.(*RecommendationsModel); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
