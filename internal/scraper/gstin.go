package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/provider"
)

var gstinPattern = regexp.MustCompile(`\b\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]\b`)

// The portal throttles repeated identical clients, so requests rotate
// through a small pool of browser user agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// GSTIN scrapes business registration details from the public GST portal.
// Unlike the other verification services there is no JSON API here; the
// reply is server-rendered HTML that gets parsed into the same result
// shape the pipeline expects.
type GSTIN struct {
	httpClient *http.Client
	baseURL    string
	log        *logrus.Logger
}

func NewGSTIN(baseURL string, timeout time.Duration, log *logrus.Logger) *GSTIN {
	return &GSTIN{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// Fetch retrieves and parses the portal page for one GSTIN.
func (g *GSTIN) Fetch(ctx context.Context, gstin string) (*provider.Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+gstin, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := ParseGSTIN(resp.StatusCode, resp.Body, gstin)
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"gstin":  gstin,
		"status": resp.StatusCode,
	}).Debug("portal page fetched")

	return &provider.Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Request:    map[string]any{"gstin": gstin},
		TAT:        time.Since(start).Seconds(),
	}, nil
}

// ParseGSTIN turns a portal page into the result document stored on the
// transaction. Non-200 pages produce only the failure envelope.
func ParseGSTIN(statusCode int, r io.Reader, gstin string) (map[string]any, error) {
	body := map[string]any{
		"status":      "failure",
		"status_code": statusCode,
		"message":     "GSTIN NOT FOUND",
	}
	if statusCode != http.StatusOK {
		return body, nil
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("scraper: parse page: %w", err)
	}

	body["status"] = "success"
	body["message"] = "GSTIN FOUND"

	// The canonical GSTIN appears in the page title; fall back to the
	// requested one if the title format ever changes.
	body["gstin"] = gstin
	if m := gstinPattern.FindString(doc.Find("title").Text()); m != "" {
		body["gstin"] = m
	}

	body["gstin_details"] = map[string]any{}
	if sec := sectionFor(doc, "Details"); sec != nil {
		body["gstin_details"] = parseDetails(sec)
	}

	body["hsn/sac"] = []string{}
	if sec := sectionFor(doc, "HSN / SAC"); sec != nil {
		body["hsn/sac"] = textsOf(sec.Find("li.text-xl"))
	}

	body["business_owners"] = []string{}
	if sec := sectionFor(doc, "Business Owners"); sec != nil {
		body["business_owners"] = textsOf(sec.Find("h2"))
	}

	body["other_gstin"] = []string{}
	if sec := sectionFor(doc, "Other GSTIN of the PAN"); sec != nil {
		body["other_gstin"] = parseOtherGSTINs(sec)
	}

	body["fillingFreq"] = []string{}
	if sec := sectionFor(doc, "Return Periodicity"); sec != nil {
		body["fillingFreq"] = parseFilingFrequencies(sec)
	}

	body["returns"] = parseReturns(doc)

	return body, nil
}

// sectionFor locates the enclosing <section> of the leaf div whose text
// contains the given heading marker.
func sectionFor(doc *goquery.Document, marker string) *goquery.Selection {
	var section *goquery.Selection
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || !strings.Contains(s.Text(), marker) {
			return true
		}
		if sec := s.ParentsFiltered("section").First(); sec.Length() > 0 {
			section = sec
			return false
		}
		return true
	})
	return section
}

// parseDetails reads the label/value rows of the registration details card.
// Aggregate turnover is paywalled on the portal and always empty, so the
// row is skipped.
func parseDetails(section *goquery.Selection) map[string]any {
	details := map[string]any{}
	section.Find("div.flex.flex-col > div").Each(func(_ int, row *goquery.Selection) {
		labelEl := row.Find("p").First()
		label := strings.TrimSpace(labelEl.Text())
		if label == "" || strings.EqualFold(label, "Aggregate Turnover") {
			return
		}

		var value string
		if spans := row.Find("span"); spans.Length() > 0 {
			value = strings.Join(textsOf(spans), " ")
		} else {
			value = strings.TrimSpace(labelEl.NextAllFiltered("h2, p").First().Text())
		}
		details[normalizeLabel(label)] = value
	})
	return details
}

func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, " ", "_")
	l = strings.ReplaceAll(l, "?", "")
	l = strings.ReplaceAll(l, "_(address)", "")
	l = strings.ReplaceAll(l, "e-i", "e_i")
	return l
}

// parseOtherGSTINs reads the sibling registrations list. Each entry renders
// as an anchor holding the GSTIN text with the state name in a trailing span.
func parseOtherGSTINs(section *goquery.Selection) []string {
	out := []string{}
	section.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		if a.Length() == 0 {
			return
		}
		state := strings.TrimSpace(a.Find("span").Text())
		number := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(a.Text()), state))
		if number == "" {
			return
		}
		if state != "" {
			number += " " + state
		}
		out = append(out, number)
	})
	return out
}

// parseFilingFrequencies reads the return periodicity grid. The portal
// renders period codes like "Q1M" without spacing.
func parseFilingFrequencies(section *goquery.Selection) []string {
	out := []string{}
	section.Find("div.grid").First().Find("div").Each(func(_ int, d *goquery.Selection) {
		if t := strings.TrimSpace(d.Text()); t != "" {
			out = append(out, strings.ReplaceAll(t, "M", " M"))
		}
	})
	return out
}

// parseReturns flattens every filing history table. The table caption names
// the return type; each row is financial year, period, filing date.
func parseReturns(doc *goquery.Document) []map[string]any {
	out := []map[string]any{}
	doc.Find("table.border").Each(func(_ int, table *goquery.Selection) {
		returnType := strings.TrimSpace(table.Find("caption").First().Text())
		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() < 3 {
				return
			}
			out = append(out, map[string]any{
				"fy":           strings.TrimSpace(cells.Eq(0).Text()),
				"period":       strings.TrimSpace(cells.Eq(1).Text()),
				"filling_date": strings.TrimSpace(cells.Eq(2).Text()),
				"return_type":  returnType,
			})
		})
	})
	return out
}

func textsOf(sel *goquery.Selection) []string {
	out := []string{}
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
