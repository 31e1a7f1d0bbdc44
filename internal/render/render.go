// Package render turns a comparison result into terminal or machine
// output. The status renderer groups entities by what happened to them,
// the git renderer mimics a unified diff, and the json renderer emits
// the raw result for tooling.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robometric/robotdiff/internal/compare"
	"github.com/robometric/robotdiff/internal/diff"
)

// Format selects an output renderer.
type Format string

const (
	Status Format = "status"
	Git    Format = "git"
	JSON   Format = "json"
)

// ParseFormat resolves a user-supplied renderer name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case Status, Git, JSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (expected status, git, or json)", s)
}

// Render formats res. color enables ANSI styling for the text renderers.
func Render(res *compare.Result, f Format, color bool) (string, error) {
	switch f {
	case Status:
		return newRenderer(res, color).status(), nil
	case Git:
		return newRenderer(res, color).git(), nil
	case JSON:
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unknown output format %q", f)
}

// entity groups the report entries belonging to one link or joint.
type entity struct {
	name    string
	status  string // added, removed, modified
	changes []diff.Entry
}

type renderer struct {
	res        *compare.Result
	red, green lipgloss.Style
	links      []entity
	joints     []entity
	nameA      string
	nameB      string
}

func newRenderer(res *compare.Result, color bool) *renderer {
	r := &renderer{res: res, nameA: res.Report.NameA, nameB: res.Report.NameB}
	if color {
		r.red = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		r.green = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	} else {
		r.red = lipgloss.NewStyle()
		r.green = lipgloss.NewStyle()
	}
	r.links = groupEntities(res.Report.Entries, "link")
	r.joints = groupEntities(res.Report.Entries, "joint")
	return r
}

func groupEntities(entries []diff.Entry, kind string) []entity {
	byName := make(map[string]*entity)
	var order []string
	for _, e := range entries {
		if e.EntityKind != kind {
			continue
		}
		ent, ok := byName[e.EntityID]
		if !ok {
			ent = &entity{name: e.EntityID, status: "modified"}
			byName[e.EntityID] = ent
			order = append(order, e.EntityID)
		}
		if e.FieldPath == "" {
			switch e.Classification {
			case diff.AddedInB:
				ent.status = "added"
			case diff.RemovedFromB:
				ent.status = "removed"
			}
			continue
		}
		ent.changes = append(ent.changes, e)
	}
	sort.Strings(order)
	out := make([]entity, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

func countByStatus(sets ...[]entity) (removed, added, modified int) {
	for _, set := range sets {
		for _, e := range set {
			switch e.status {
			case "removed":
				removed++
			case "added":
				added++
			default:
				modified++
			}
		}
	}
	return
}

func filterByStatus(set []entity, status string) []entity {
	var out []entity
	for _, e := range set {
		if e.status == status {
			out = append(out, e)
		}
	}
	return out
}

func bars(title string) string {
	return fmt.Sprintf("━━━ %s ━━━", title)
}

func (r *renderer) status() string {
	var lines []string
	lines = append(lines, bars("NAME"), "")
	if r.nameA != r.nameB {
		lines = append(lines, fmt.Sprintf("%s → %s", r.red.Render(r.nameA), r.green.Render(r.nameB)))
	} else {
		lines = append(lines, fmt.Sprintf("%s → %s", r.nameA, r.nameB))
	}
	lines = append(lines, "")

	removed, added, modified := countByStatus(r.links, r.joints)
	rule := strings.Repeat("═", 45)
	lines = append(lines, rule,
		fmt.Sprintf("SUMMARY: %d removed, %d added, %d modified", removed, added, modified),
		rule, "")

	lines = append(lines, r.statusSection("removed", "REMOVED", r.red)...)
	lines = append(lines, r.statusSection("added", "ADDED", r.green)...)
	lines = append(lines, r.modifiedSection()...)
	lines = append(lines, r.warningSection()...)

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func (r *renderer) statusSection(status, title string, style lipgloss.Style) []string {
	links := filterByStatus(r.links, status)
	joints := filterByStatus(r.joints, status)
	if len(links)+len(joints) == 0 {
		return nil
	}
	lines := []string{bars(title), ""}
	for _, e := range links {
		lines = append(lines, "Link: "+style.Render(e.name))
	}
	for _, e := range joints {
		lines = append(lines, "Joint: "+style.Render(e.name))
	}
	return append(lines, "")
}

func (r *renderer) modifiedSection() []string {
	links := filterByStatus(r.links, "modified")
	joints := filterByStatus(r.joints, "modified")
	if len(links)+len(joints) == 0 {
		return nil
	}
	lines := []string{bars("MODIFIED"), ""}
	for _, group := range []struct {
		label string
		set   []entity
	}{{"Link", links}, {"Joint", joints}} {
		for _, e := range group.set {
			lines = append(lines, fmt.Sprintf("%s: %s", group.label, e.name))
			for _, c := range e.changes {
				lines = append(lines, fmt.Sprintf("  • %s: %s", c.FieldPath, r.change(c)))
			}
			lines = append(lines, "")
		}
	}
	return lines
}

func (r *renderer) warningSection() []string {
	if len(r.res.Report.Warnings) == 0 {
		return nil
	}
	lines := []string{bars("WARNINGS"), ""}
	for _, w := range r.res.Report.Warnings {
		lines = append(lines, "  "+w)
	}
	return append(lines, "")
}

func (r *renderer) change(e diff.Entry) string {
	switch e.Classification {
	case diff.AddedInB:
		return r.green.Render("added")
	case diff.RemovedFromB:
		return r.red.Render("removed")
	}
	oldStr, newStr := r.highlightComponents(e.ValueA, e.ValueB)
	return fmt.Sprintf("%s → %s", oldStr, newStr)
}

// highlightComponents colors only the differing components of two
// same-arity tuple values, and whole values otherwise.
func (r *renderer) highlightComponents(a, b string) (string, string) {
	ca, okA := splitTuple(a)
	cb, okB := splitTuple(b)
	if !okA || !okB || len(ca) != len(cb) {
		return r.red.Render(a), r.green.Render(b)
	}
	oldParts := make([]string, len(ca))
	newParts := make([]string, len(cb))
	for i := range ca {
		if ca[i] == cb[i] {
			oldParts[i], newParts[i] = ca[i], cb[i]
		} else {
			oldParts[i] = r.red.Render(ca[i])
			newParts[i] = r.green.Render(cb[i])
		}
	}
	return "(" + strings.Join(oldParts, ", ") + ")", "(" + strings.Join(newParts, ", ") + ")"
}

func splitTuple(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	return strings.Split(s[1:len(s)-1], ", "), true
}

func (r *renderer) git() string {
	var lines []string
	lines = append(lines, "@@ Name @@", "")
	if r.nameA != r.nameB {
		lines = append(lines,
			r.red.Render("-name: "+r.nameA),
			r.green.Render("+name: "+r.nameB))
	}
	lines = append(lines, "")

	removed, added, modified := countByStatus(r.links)
	lines = append(lines, fmt.Sprintf("@@ Links (%d removed, %d added, %d modified) @@", removed, added, modified), "")
	lines = append(lines, r.gitEntities(r.links, "Link")...)

	removed, added, modified = countByStatus(r.joints)
	lines = append(lines, fmt.Sprintf("@@ Joints (%d removed, %d added, %d modified) @@", removed, added, modified), "")
	lines = append(lines, r.gitEntities(r.joints, "Joint")...)

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func (r *renderer) gitEntities(set []entity, label string) []string {
	var lines []string
	for _, e := range set {
		switch e.status {
		case "removed":
			lines = append(lines, r.red.Render(fmt.Sprintf("-%s %s", label, e.name)))
		case "added":
			lines = append(lines, r.green.Render(fmt.Sprintf("+%s %s", label, e.name)))
		default:
			lines = append(lines, fmt.Sprintf(" %s %s", label, e.name))
			for _, c := range e.changes {
				lines = append(lines, r.gitChange(c)...)
			}
		}
		lines = append(lines, "")
	}
	return lines
}

func (r *renderer) gitChange(e diff.Entry) []string {
	switch e.Classification {
	case diff.AddedInB:
		return []string{r.green.Render(fmt.Sprintf("+  %s: %s", e.FieldPath, e.ValueB))}
	case diff.RemovedFromB:
		return []string{r.red.Render(fmt.Sprintf("-  %s: %s", e.FieldPath, e.ValueA))}
	}
	return []string{
		r.red.Render(fmt.Sprintf("-  %s: %s", e.FieldPath, e.ValueA)),
		r.green.Render(fmt.Sprintf("+  %s: %s", e.FieldPath, e.ValueB)),
	}
}
