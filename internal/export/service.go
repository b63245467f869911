package export

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/report"
)

// Item is an exported opportunity with the local path of its proposal, if any.
type Item struct {
	Opportunity *opportunity.Opportunity
	FilePath    string
}

// Service builds proposal packs: the proposal documents of a set of
// opportunities downloaded into one directory.
type Service struct {
	opps     *opportunity.Service
	client   *http.Client
	apiToken string
}

func NewService(opps *opportunity.Service, apiToken string) *Service {
	return &Service{
		opps:     opps,
		client:   &http.Client{Timeout: 30 * time.Second},
		apiToken: apiToken,
	}
}

// Export downloads the proposal of every opportunity matching filter into
// outputDir. Proposals that are not http(s) links are listed without a file.
func (s *Service) Export(ctx context.Context, filter opportunity.ListFilter, outputDir string) ([]Item, error) {
	opps, err := s.opps.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(opps))

	for _, o := range opps {
		item := Item{Opportunity: o}

		if isRemote(o.ProposalPDF) {
			path, err := s.downloadProposal(ctx, o, outputDir)
			if err != nil {
				return nil, fmt.Errorf("downloading proposal for opportunity %s: %w", o.ID, err)
			}

			item.FilePath = path
		}

		items = append(items, item)
	}

	return items, nil
}

func isRemote(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Service) downloadProposal(ctx context.Context, o *opportunity.Opportunity, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(o.ProposalPDF), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	if s.apiToken != "" {
		req.Header.Set("Authorization", "Token "+s.apiToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, o.ProposalPDF)
	}

	path := filepath.Join(dir, filename(resp, o))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

// filename prefers the server's Content-Disposition name and otherwise builds
// one from the company and title.
func filename(resp *http.Response, o *opportunity.Opportunity) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok && name != "" {
				return strings.ReplaceAll(filepath.Base(name), " ", "_")
			}
		}
	}

	ext := ".pdf"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}

	return fmt.Sprintf("%s_%s%s", safeName(o.Company), safeName(o.Title), ext)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, s)
}

// GenerateSummary lists the exported items one per line, ready to paste into an email.
func (s *Service) GenerateSummary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		o := item.Opportunity

		file := "No proposal"
		if item.FilePath != "" {
			file = filepath.Base(item.FilePath)
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s %s | %s\n",
			o.ExpectedCloseDate.Format("2006-01-02"), o.Company, o.Title, report.Money(o.Value), o.Currency, file)
	}

	return sb.String()
}
