package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/signalscan/internal/model"
)

// Selectors for the profile page markup.
const (
	selIdentityName   = ".identity-block h1"
	selStatRow        = ".line-separated-row.row"
	selStatLabel      = ".col-xs-5 .lh-solid"
	selStatValue      = ".col-xs-7 .lh-solid"
	selStatValueCell  = ".col-xs-7"
	selExperienceRow  = ".line-separated-row.flex.justify-between"
	selRankingSection = "div.sn-margin-top-30.relative"
	selRankingChip    = "a.vc-list-chip"
	selLinkset        = ".sn-linkset"
	selNetwork        = ".mt2"
	selNetworkName    = ".f6"
	selNetworkCount   = ".f7"
	selInvestmentRow  = "tbody.past-investments-table-body tr"
	selCoinvestorRow  = "coinvestors-row"
	selInvestmentCell = "td.with-coinvestors div.round-padding"
	selTotalRaised    = "td.with-coinvestors:nth-child(3) div.round-padding"
)

// PastInvestmentsSelector matches rows of the past-investments table. The
// profile command counts them before and after expanding the table.
const PastInvestmentsSelector = selInvestmentRow

// rankingHeading identifies the sector rankings section.
const rankingHeading = "Sector & Stage Rankings"

// socialHosts maps link hosts to social link keys, checked in order.
var socialHosts = []struct {
	fragment string
	key      string
}{
	{"linkedin.com", "linkedin"},
	{"twitter.com", "twitter"},
	{"angel.co", "angellist"},
	{"wellfound.com", "angellist"},
	{"crunchbase.com", "crunchbase"},
}

// ExtractProfile maps an investor profile page into a Profile.
// Missing sections leave their fields empty.
func (e *Extractor) ExtractProfile(snapshot, profileURL string) model.Profile {
	p := model.NewProfile(profileURL, e.now())

	doc, err := parse(snapshot)
	if err != nil {
		e.logger.Warn("failed to parse profile", "url", profileURL, "error", err)
		return p
	}

	if h1 := doc.Find(selIdentityName).First(); h1.Length() > 0 {
		name, _, _ := strings.Cut(cleanText(h1.Text()), "(")
		p.Name = strings.TrimSpace(name)
	}

	e.extractStats(doc, &p)
	p.Experience = extractExperience(doc)
	p.SectorRankings = extractRankings(doc)
	p.SocialLinks = extractSocialLinks(doc)
	p.Networks, p.Education = extractNetworks(doc)
	p.PastInvestments = extractInvestments(doc)
	return p
}

func (e *Extractor) extractStats(doc *goquery.Document, p *model.Profile) {
	doc.Find(selStatRow).Each(func(_ int, row *goquery.Selection) {
		labelSel := row.Find(selStatLabel).First()
		valueSel := row.Find(selStatValue).First()
		if labelSel.Length() == 0 {
			return
		}
		label := strings.Trim(cleanText(labelSel.Text()), ":")
		value := cleanText(valueSel.Text())

		switch {
		case strings.Contains(label, "Current Investing Position"):
			p.CurrentCompany = currentCompany(row, value)
		case valueSel.Length() == 0:
			return
		case strings.Contains(label, "Investment Range"):
			p.InvestmentRange = value
		case strings.Contains(label, "Sweet Spot"):
			p.SweetSpot = value
		case strings.Contains(label, "Current Fund Size"):
			p.CurrentFundSize = value
		case strings.Contains(label, "Investments On Record"):
			p.InvestmentsOnRecord = value
		}
	})
}

// currentCompany prefers the firm link in the value cell and otherwise takes
// the text after the last " at ".
func currentCompany(row *goquery.Selection, value string) string {
	cell := row.Find(selStatValueCell).First()
	if a := cell.Find("a").First(); a.Length() > 0 {
		return cleanText(a.Text())
	}
	if value == "" {
		value = cleanText(cell.Text())
	}
	if i := strings.LastIndex(value, " at "); i >= 0 {
		return strings.TrimSpace(value[i+len(" at "):])
	}
	return value
}

func extractExperience(doc *goquery.Document) []model.Experience {
	out := make([]model.Experience, 0)
	doc.Find(selExperienceRow).Each(func(_ int, row *goquery.Selection) {
		parts := textParts(row)
		if len(parts) < 3 {
			return
		}
		out = append(out, model.Experience{
			Role:     parts[0],
			Company:  parts[1],
			Duration: parts[len(parts)-1],
		})
	})
	return out
}

func extractRankings(doc *goquery.Document) []string {
	out := make([]string, 0)
	doc.Find(selRankingSection).Each(func(_ int, section *goquery.Selection) {
		if !strings.Contains(section.Text(), rankingHeading) {
			return
		}
		out = append(out, linkTextsMatching(section, selRankingChip)...)
	})
	return out
}

func extractSocialLinks(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	doc.Find(selLinkset).First().Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		for _, sh := range socialHosts {
			if strings.Contains(href, sh.fragment) {
				if _, seen := out[sh.key]; !seen {
					out[sh.key] = href
				}
				return
			}
		}
		if _, seen := out["website"]; !seen && strings.HasPrefix(href, "http") {
			out["website"] = href
		}
	})
	return out
}

// extractNetworks returns network memberships and the subset that look like
// schools.
func extractNetworks(doc *goquery.Document) ([]model.Network, []string) {
	networks := make([]model.Network, 0)
	education := make([]string, 0)
	doc.Find(selNetwork).Each(func(_ int, n *goquery.Selection) {
		nameSel := n.Find(selNetworkName).First()
		if nameSel.Length() == 0 {
			return
		}
		name := cleanText(nameSel.Text())
		networks = append(networks, model.Network{
			Name:        name,
			Connections: digits(n.Find(selNetworkCount).First().Text()),
		})
		lower := strings.ToLower(name)
		if strings.Contains(lower, "university") || strings.Contains(lower, "school") {
			education = append(education, name)
		}
	})
	return networks, education
}

func extractInvestments(doc *goquery.Document) []model.Investment {
	out := make([]model.Investment, 0)
	doc.Find(selInvestmentRow).Each(func(_ int, row *goquery.Selection) {
		if row.HasClass(selCoinvestorRow) {
			return
		}
		var inv model.Investment
		cells := row.Find(selInvestmentCell)
		inv.Company = cleanText(cells.First().Text())
		if cells.Length() > 1 {
			parts := strings.Split(cleanText(cells.Eq(1).Text()), "·")
			if len(parts) >= 3 {
				inv.Stage = strings.TrimSpace(parts[0])
				inv.Date = strings.TrimSpace(parts[1])
				inv.RoundSize = strings.TrimSpace(parts[2])
			}
		}
		inv.TotalRaised = cleanText(row.Find(selTotalRaised).First().Text())

		if inv == (model.Investment{}) {
			return
		}
		out = append(out, inv)
	})
	return out
}

// textParts returns the trimmed non-empty text nodes under s in order.
func textParts(s *goquery.Selection) []string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := cleanText(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(s)
	return parts
}

func linkTextsMatching(s *goquery.Selection, selector string) []string {
	texts := make([]string, 0)
	s.Find(selector).Each(func(_ int, a *goquery.Selection) {
		if t := cleanText(a.Text()); t != "" {
			texts = append(texts, t)
		}
	})
	return texts
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
