/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tender Site Adapters
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tenders

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source keys accepted by the scraper and the API.
const (
	KeyAUS  = "aus"
	KeyGIZ  = "giz"
	KeyUNDP = "undp"
	KeyAll  = "all"
)

// adapter knows how to page through one site and turn a page into tenders.
type adapter struct {
	key     string
	source  string
	baseURL string
	pageURL func(base string, page int) string
	parse   func(doc *goquery.Document, page *url.URL) []Tender
}

func defaultAdapters() []adapter {
	return []adapter{
		{
			key:     KeyAUS,
			source:  SourceAUS,
			baseURL: "https://www.tenders.gov.au/atm",
			pageURL: func(base string, page int) string {
				return fmt.Sprintf("%s?page=%d", base, page)
			},
			parse: parseAUS,
		},
		{
			key:     KeyGIZ,
			source:  SourceGIZ,
			baseURL: "https://ausschreibungen.giz.de/Satellite/company/welcome.do",
			pageURL: func(base string, page int) string {
				params := url.Values{}
				params.Set("method", "showTable")
				params.Set("fromSearch", "1")
				params.Set("tableSortPROJECT_RESULT", "1")
				params.Set("tableSortAttributePROJECT_RESULT", "relevantDate")
				params.Set("selectedTablePagePROJECT_RESULT", strconv.Itoa(page))
				return base + "?" + params.Encode()
			},
			parse: parseGIZ,
		},
		{
			key:     KeyUNDP,
			source:  SourceUNDP,
			baseURL: "https://procurement-notices.undp.org/",
			pageURL: func(base string, page int) string {
				if page == 1 {
					return base
				}
				return fmt.Sprintf("%s?page=%d", base, page)
			},
			parse: parseUNDP,
		},
	}
}

var ausSelectors = []string{
	"div.tender-listing",
	"tr.tender-row",
	"div.tender-item",
	"div.result-item",
	"div.listing-item",
	`div[class*="tender"]`,
	`div[class*="result"]`,
}

func parseAUS(doc *goquery.Document, page *url.URL) []Tender {
	var items *goquery.Selection
	for _, sel := range ausSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			items = found
			break
		}
	}
	if items == nil {
		return nil
	}

	var out []Tender
	items.Each(func(_ int, s *goquery.Selection) {
		title := firstText(s, "h3", "h2", "a.title")
		if title == "" {
			title = "Untitled"
		}
		out = append(out, Tender{
			Title:        title,
			Description:  firstText(s, "p.description", "div.summary"),
			ClosingDate:  firstText(s, "span.closing-date", "div.date"),
			Organization: firstText(s, "span.agency", "div.organization"),
			Link:         link(s, page),
			Source:       SourceAUS,
		})
	})
	return out
}

func parseGIZ(doc *goquery.Document, page *url.URL) []Tender {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil
	}

	var out []Tender
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		cell := func(n int) string { return clean(cells.Eq(n).Text()) }

		title := cell(2)
		if title == "" {
			title = "Untitled"
		}
		out = append(out, Tender{
			Title:        title,
			Description:  "Type: " + cell(3),
			ClosingDate:  cell(1),
			Organization: cell(4),
			Link:         link(row, page),
			Source:       SourceGIZ,
		})
	})
	return out
}

func parseUNDP(doc *goquery.Document, page *url.URL) []Tender {
	items := doc.Find("a.vacanciesTable__row")
	if items.Length() == 0 {
		for _, sel := range []string{"div.tender-item", "tr", "div.procurement-notice"} {
			if items = doc.Find(sel); items.Length() > 0 {
				break
			}
		}
	}

	var out []Tender
	items.Each(func(_ int, s *goquery.Selection) {
		t := Tender{Title: "Untitled", Organization: "UNDP", Source: SourceUNDP}
		var ref, process, posted string

		s.Find("div.vacanciesTable__cell").Each(func(_ int, cell *goquery.Selection) {
			labelSel := cell.Find("div.vacanciesTable__cell__label").First()
			if labelSel.Length() == 0 {
				return
			}
			valueSel := cell.Find("span").First()
			if valueSel.Length() == 0 {
				return
			}
			label := strings.ToLower(clean(labelSel.Text()))
			value := clean(valueSel.Text())

			switch {
			case strings.Contains(label, "title"):
				t.Title = value
			case strings.Contains(label, "ref no"):
				ref = value
			case strings.Contains(label, "undp office/country"):
				t.Organization = value
			case strings.Contains(label, "process"):
				process = value
			case strings.Contains(label, "deadline"):
				t.ClosingDate = value
			case strings.Contains(label, "posted"):
				posted = value
			}
		})

		desc := "Procurement Notice"
		if process != "" {
			desc = "Type: " + process
		}
		if ref != "" {
			desc += " | Ref: " + ref
		}
		if posted != "" {
			desc += " | Posted: " + posted
		}
		t.Description = desc

		if href, ok := s.Attr("href"); ok {
			t.Link = resolve(page, href)
		} else {
			t.Link = link(s, page)
		}
		out = append(out, t)
	})
	return out
}

// firstText returns the text of the first match of the first selector that
// matches anything under s.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return clean(found.Text())
		}
	}
	return ""
}

// link returns the first usable href under s as an absolute URL.
func link(s *goquery.Selection, page *url.URL) string {
	var out string
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		out = resolve(page, href)
		return out == ""
	})
	return out
}

// resolve makes href absolute. Script and fragment links yield "".
func resolve(page *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if page != nil {
		ref = page.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
