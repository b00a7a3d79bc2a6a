package browse

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/statejobs/internal/model"
)

// Lines per job item in the list view (title + subtitle + blank separator).
const jobItemHeight = 3

const dateLayout = "2006-01-02"

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	jobTitleStyle = lipgloss.NewStyle().
			Bold(true)

	jobSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedJobTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedJobSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(18)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	descDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	descHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// detailFetchedMsg is sent when an on-demand scrape completes.
type detailFetchedMsg struct {
	id     int64
	detail model.Detail
	err    error
}

// extractedMsg is sent when an on-demand extraction completes.
type extractedMsg struct {
	id         int64
	extraction model.Extraction
	err        error
}

type browseModel struct {
	allJobs       []model.JobRecord
	matchedJobs   []model.JobRecord
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	// Detail view state
	view            viewState
	detailJob       model.JobRecord
	detailLoading   bool
	detailError     string
	detailViewport  viewport.Model
	scraper         model.DetailScraper
	showDescription bool

	// Extraction state
	extractor      model.Extractor
	extractLoading bool
	extractError   string

	wantQuit bool
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case detailFetchedMsg:
		m.detailLoading = false
		if msg.err != nil {
			m.detailError = fmt.Sprintf("failed to load posting page: %v", msg.err)
		} else if msg.id == m.detailJob.ID {
			m.detailError = ""
			m.detailJob.Detail = msg.detail
			if msg.detail.Agency != nil {
				m.detailJob.HumanReadableAgency = model.HumanizeAgency(*msg.detail.Agency)
			}
			m.updateJobInLists(m.detailJob)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case extractedMsg:
		m.extractLoading = false
		switch {
		case msg.err != nil:
			m.extractError = fmt.Sprintf("summary failed: %v", msg.err)
		case msg.extraction.IsEmpty():
			m.extractError = "the model returned nothing usable for this posting"
		case msg.id == m.detailJob.ID:
			m.extractError = ""
			e := msg.extraction
			m.detailJob.Extraction = &e
			m.updateJobInLists(m.detailJob)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}
	return m, nil
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detailJob.Link)
		return m, nil
	case "r":
		if m.detailJob.Detail.DutiesDescription != nil {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "s":
		if m.canExtract() {
			m.extractLoading = true
			m.extractError = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, m.extractCmd(m.detailJob)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m browseModel) canExtract() bool {
	return m.extractor != nil && !m.extractLoading && m.detailJob.Extraction == nil &&
		m.detailJob.Detail.DutiesDescription != nil
}

func (m browseModel) extractCmd(job model.JobRecord) tea.Cmd {
	extractor := m.extractor
	text := job.EnrichmentText()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		e, err := extractor.Extract(ctx, text)
		return extractedMsg{id: job.ID, extraction: e, err: err}
	}
}

func (m *browseModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.allJobs)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.matchedJobs)-1, 0))
	}
}

func (m *browseModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * jobItemHeight
	cursorBottom := cursorTop + jobItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browseModel) openDetailView() (tea.Model, tea.Cmd) {
	jobs := m.activeJobs()
	cursor := m.activeCursor()
	if len(jobs) == 0 {
		return m, nil
	}

	job := jobs[cursor]
	m.view = viewDetail
	m.detailJob = job
	m.detailError = ""
	m.extractError = ""
	m.showDescription = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())

	// Scrape postings the pipeline has not reached yet.
	if m.scraper != nil && !job.HasDetail() && job.Link != "" {
		m.detailLoading = true
		return m, m.fetchDetailCmd(job)
	}
	return m, nil
}

func (m browseModel) fetchDetailCmd(job model.JobRecord) tea.Cmd {
	scraper := m.scraper
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		d, err := scraper.ScrapeDetail(ctx, job.Link)
		return detailFetchedMsg{id: job.ID, detail: d, err: err}
	}
}

func (m *browseModel) updateJobInLists(job model.JobRecord) {
	for i := range m.allJobs {
		if m.allJobs[i].ID == job.ID {
			m.allJobs[i] = job
			break
		}
	}
	for i := range m.matchedJobs {
		if m.matchedJobs[i].ID == job.ID {
			m.matchedJobs[i] = job
			break
		}
	}
}

func (m *browseModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.leftViewport.SetContent(renderJobs(m.allJobs, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderJobs(m.matchedJobs, m.rightCursor, m.activePane == 1))
}

func (m browseModel) activeJobs() []model.JobRecord {
	if m.activePane == 0 {
		return m.allJobs
	}
	return m.matchedJobs
}

func (m browseModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" All Postings (%d)", len(m.allJobs))
	rightHeader := fmt.Sprintf(" Matching Filter (%d)", len(m.matchedJobs))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d total | %d matched    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		len(m.allJobs), len(m.matchedJobs))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailTitleStyle.Render("Posting Details")
	if m.detailLoading {
		title += "  (loading...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open link  esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailJob.Detail.DutiesDescription != nil {
		if m.canExtract() {
			statusText = " o open link  r duties  s summary  esc/backspace back  ↑/↓ scroll  q quit"
		} else {
			statusText = " o open link  r duties  esc/backspace back  ↑/↓ scroll  q quit"
		}
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	j := m.detailJob
	d := j.Detail
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", j.Title)
	addField("Agency", firstNonEmpty(j.HumanReadableAgency, deref(d.Agency)))
	addField("Job ID", fmt.Sprint(j.ID))
	addField("Grade", j.Grade)
	addField("County", j.County)
	addField("Published", j.PublishDate.Format(dateLayout))
	addField("Apply By", j.Deadline.Format(dateLayout))

	if j.HasDetail() || d != (model.Detail{}) {
		b.WriteByte('\n')
		addField("Salary Range", deref(d.SalaryRange))
		addField("Employment", deref(d.EmploymentType))
		addField("Appointment", deref(d.AppointmentType))
		addField("Workweek", deref(d.Workweek))
		addField("Hours/Week", deref(d.HoursPerWeek))
		addField("Telecommuting", yesNo(d.TelecommutingAllowed))
		addField("Travel", percent(d.TravelPercentage))
		addField("Address", strings.Join(nonEmpty(deref(d.StreetAddress), deref(d.City), deref(d.State), deref(d.ZipCode)), ", "))
		addField("Contact", strings.Join(nonEmpty(deref(d.ContactName), deref(d.ContactEmail), deref(d.ContactPhone)), " · "))
		if j.LastScraped != nil {
			addField("Scraped At", j.LastScraped.Format("2006-01-02 15:04 MST"))
		}
	}

	b.WriteByte('\n')
	addField("Link", j.Link)

	if m.detailError != "" {
		b.WriteByte('\n')
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("⚠ "+m.detailError) + "\n")
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return descDividerStyle.Render(label + fill)
	}

	switch {
	case j.Extraction != nil:
		e := j.Extraction
		b.WriteByte('\n')
		b.WriteString(divider("── Summary ") + "\n\n")
		addField("Role", e.SemanticJobTitle)
		b.WriteByte('\n')
		for _, pt := range e.BulletPoints {
			b.WriteString(detailValueStyle.Render("  • "+pt) + "\n")
		}
		if len(e.MinQualifications) > 0 {
			b.WriteByte('\n')
			addField("Min. Quals", strings.Join(e.MinQualifications, "; "))
		}
		if len(e.PrefQualifications) > 0 {
			addField("Pref. Quals", strings.Join(e.PrefQualifications, "; "))
		}
	case m.extractLoading:
		b.WriteByte('\n')
		b.WriteString(descHintStyle.Render("  summarizing posting...") + "\n")
	case m.extractError != "":
		b.WriteByte('\n')
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("⚠ "+m.extractError) + "\n")
	case m.canExtract():
		b.WriteByte('\n')
		b.WriteString(descHintStyle.Render("  press s for a summary") + "\n")
	}

	if d.DutiesDescription != nil {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Duties ") + "\n\n")
			b.WriteString(descBodyStyle.Render(wordWrap(*d.DutiesDescription, wrapWidth)) + "\n")
			if d.MinimumQualifications != nil {
				b.WriteString("\n" + divider("── Minimum Qualifications ") + "\n\n")
				b.WriteString(descBodyStyle.Render(wordWrap(*d.MinimumQualifications, wrapWidth)) + "\n")
			}
		} else {
			b.WriteString(descHintStyle.Render("  press r to read the duties description") + "\n")
		}
	}

	return b.String()
}

func renderJobs(jobs []model.JobRecord, cursor int, isActive bool) string {
	if len(jobs) == 0 {
		return "  (no postings)"
	}

	var b strings.Builder
	for i, j := range jobs {
		isSelected := isActive && i == cursor

		titleSt := jobTitleStyle
		subtitleSt := jobSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedJobTitleStyle
			subtitleSt = selectedJobSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(j.Title))
		b.WriteByte('\n')

		county := j.County
		if county == "" {
			county = "n/a"
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · grade %s · by %s", county, j.Grade, j.Deadline.Format(dateLayout))))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Yes"
	default:
		return "No"
	}
}

func percent(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g%%", *v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the split-pane browser over the given records. matched holds
// the subset passing the notification filter. scraper and extractor may be
// nil; when set, unscraped postings are fetched on open and 's' asks the
// model for a summary. Nothing is written back to the store.
// Returns wantQuit=true if the user pressed q/ctrl+c, false on esc.
func Run(all, matched []model.JobRecord, scraper model.DetailScraper, extractor model.Extractor) (bool, error) {
	m := browseModel{
		allJobs:     all,
		matchedJobs: matched,
		scraper:     scraper,
		extractor:   extractor,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(browseModel)
	return final.wantQuit, nil
}
