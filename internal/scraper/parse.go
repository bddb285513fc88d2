package scraper

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/nursmen/neuralhire/internal/ingestion"
)

// Selectors name the CSS classes of a vacancy card. An element matches when
// it carries every listed class.
type Selectors struct {
	Card      string
	Money     string
	City      string
	Knowledge string
	Company   string
	Addition  string
}

// DefaultSelectors match superjob.ru search result markup.
var DefaultSelectors = Selectors{
	Card:      "f-test-search-result-item",
	Money:     "kk-+S _1wD2J _3ixqx _3uDFj _2KByL",
	City:      "wDNBJ _3ixqx _3uDFj _2KByL",
	Knowledge: "wDNBJ _3ixqx _3uDFj _2KByL _2wD_q",
	Company:   "f-test-text-vacancy-item-company-name",
	Addition:  "_1Zv0C EI3kW _1B3_w",
}

const negotiable = "По договорённости"

// maxSalary drops numbers that are not monthly amounts (phone numbers, ids).
const maxSalary = 10_000_000

var (
	digitGroups = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}]*`)
	nonLatin    = regexp.MustCompile(`[^a-zA-Z\s]+`)
)

// ParseListing extracts vacancy rows from a search result page. Relative
// links resolve against base.
func ParseListing(r io.Reader, base *url.URL, sel Selectors) ([]ingestion.Row, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []ingestion.Row
	for _, card := range findAll(doc, "div", sel.Card) {
		if row, ok := parseCard(card, base, sel); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func parseCard(card *html.Node, base *url.URL, sel Selectors) (ingestion.Row, bool) {
	anchor := findFirst(card, "a", "")
	if anchor == nil {
		return nil, false
	}
	title := strings.TrimSpace(textOf(anchor))
	if title == "" {
		return nil, false
	}

	row := ingestion.Row{
		ingestion.ColTitle: title,
		ingestion.ColLink:  resolve(base, attr(anchor, "href")),
	}

	if n := findFirst(card, "span", sel.Money); n != nil {
		row[ingestion.ColMoney] = parseMoney(textOf(n))
	}
	// City and knowledge share classes; knowledge carries one more.
	for _, n := range findAll(card, "span", sel.City) {
		if !hasClasses(n, sel.Knowledge) {
			row[ingestion.ColCity] = strings.TrimSpace(textOf(n))
			break
		}
	}
	var knowledge string
	for _, n := range findAll(card, "span", sel.Knowledge) {
		knowledge = textOf(n)
	}
	row[ingestion.ColKnowledge] = latinSkills(knowledge)

	if n := findFirst(card, "span", sel.Company); n != nil {
		row[ingestion.ColCompany] = strings.TrimSpace(textOf(n))
	}
	if n := findFirst(card, "div", sel.Addition); n != nil {
		row[ingestion.ColAddition] = formatTags(splitCamel(strings.TrimSpace(textOf(n))))
	}
	return row, true
}

// parseMoney returns the negotiable marker or the mean of a salary range.
func parseMoney(s string) string {
	if strings.Contains(s, negotiable) {
		return negotiable
	}
	var sum, n int64
	for _, group := range digitGroups.FindAllString(s, -1) {
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, group)
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || v <= 0 || v >= maxSalary {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(sum/n, 10)
}

// latinSkills keeps the Latin words of a requirements snippet, upper-cased.
// Skill names such as PYTHON or SQL are what survive.
func latinSkills(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(nonLatin.ReplaceAllString(s, " ")), " "))
}

// splitCamel splits glued tag labels such as "Удаленная работаОпыт не нужен".
func splitCamel(s string) []string {
	if s == "" {
		return nil
	}
	var (
		tags    []string
		current []rune
	)
	for _, r := range s {
		if len(current) > 0 && unicode.IsUpper(r) && unicode.IsLower(current[len(current)-1]) {
			tags = append(tags, string(current))
			current = current[:0]
		}
		current = append(current, r)
	}
	return append(tags, string(current))
}

// formatTags renders tags in the list notation stored in the addition column.
func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = "'" + strings.TrimSpace(t) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func findAll(n *html.Node, tag, classes string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag && hasClasses(n, classes) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, tag, classes string) *html.Node {
	if found := findAll(n, tag, classes); len(found) > 0 {
		return found[0]
	}
	return nil
}

func hasClasses(n *html.Node, classes string) bool {
	want := strings.Fields(classes)
	if len(want) == 0 {
		return true
	}
	have := make(map[string]bool)
	for _, c := range strings.Fields(attr(n, "class")) {
		have[c] = true
	}
	for _, c := range want {
		if !have[c] {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
