package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/majestic"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

const (
	// CSVFileName is the name downloads are written under inside the tmp root.
	CSVFileName = "majestic_million.csv"
	// StatusDownloaded is the fixed status of a successful download.
	StatusDownloaded = "Successfully Downloaded"
)

// DownloadResult is returned by download_domains_csv.
type DownloadResult struct {
	Path   string `json:"Path"`
	Status string `json:"Status"`
}

// DownloadDomainsCSV fetches the feed and writes the body verbatim to
// <tmp root>/majestic_million.csv, replacing any previous file.
func (c *Connector) DownloadDomainsCSV(ctx context.Context, cfg *majestic.Config, params majestic.Params) (DownloadResult, error) {
	c.logger.Info("starting download", "operation", OpDownloadDomainsCSV)

	resp, err := c.fetch(ctx, cfg, params)
	if err != nil {
		return DownloadResult{}, c.fail(OpDownloadDomainsCSV, err, majestic.KindUnknown)
	}
	defer resp.Body.Close()

	path := filepath.Join(c.tmpRoot, CSVFileName)
	n, err := writeBody(path, resp.Body)
	if err != nil {
		return DownloadResult{}, c.fail(OpDownloadDomainsCSV, err, majestic.KindIO)
	}
	c.metrics.AddDownloadedBytes(n)

	c.logger.Info("download complete", "operation", OpDownloadDomainsCSV, "path", path, "bytes", n)
	return DownloadResult{Path: path, Status: StatusDownloaded}, nil
}

// GetDomainRecords fetches the feed and parses at most params["limit"] rows.
// Without a limit every row is returned.
func (c *Connector) GetDomainRecords(ctx context.Context, cfg *majestic.Config, params majestic.Params) ([]records.Record, error) {
	payload := majestic.BuildPayload(params)

	limit := records.NoLimit
	n, ok, err := payload.Int("limit")
	if err != nil {
		return nil, c.fail(OpGetDomainRecords, majestic.NewError(majestic.KindParse, err.Error(), err), majestic.KindParse)
	}
	if ok {
		if n < 0 {
			msg := fmt.Sprintf("limit must not be negative, got %d", n)
			return nil, c.fail(OpGetDomainRecords, majestic.NewError(majestic.KindParse, msg, nil), majestic.KindParse)
		}
		limit = n
	}

	resp, err := c.fetch(ctx, cfg, params)
	if err != nil {
		return nil, c.fail(OpGetDomainRecords, err, majestic.KindUnknown)
	}
	defer resp.Body.Close()

	body := &trackingReader{r: resp.Body}
	recs, err := records.Parse(body, limit)
	if err != nil {
		if body.err != nil {
			return nil, c.fail(OpGetDomainRecords, majestic.ClassifyBodyError(body.err), majestic.KindUnknown)
		}
		return nil, c.fail(OpGetDomainRecords, majestic.NewError(majestic.KindParse, err.Error(), err), majestic.KindParse)
	}
	c.metrics.AddRecords(len(recs))

	c.logger.Info("parsed domain records", "operation", OpGetDomainRecords, "count", len(recs), "limit", limit)
	return recs, nil
}

func (c *Connector) fetch(ctx context.Context, cfg *majestic.Config, params majestic.Params) (*http.Response, error) {
	if cfg == nil {
		return nil, majestic.NewError(majestic.KindUnknown, ErrMissingConfig.Error(), ErrMissingConfig)
	}

	return c.client(cfg).MakeRequest(ctx, majestic.Request{
		Endpoint: c.endpoint,
		Method:   http.MethodGet,
		Params:   majestic.BuildPayload(params),
	})
}

// writeBody copies body into path. A failure part way leaves a truncated file.
func writeBody(path string, body io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, majestic.NewError(majestic.KindIO, err.Error(), err)
	}

	src := &trackingReader{r: body}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case src.err != nil:
		return n, majestic.ClassifyBodyError(src.err)
	case copyErr != nil:
		return n, majestic.NewError(majestic.KindIO, copyErr.Error(), copyErr)
	case closeErr != nil:
		return n, majestic.NewError(majestic.KindIO, closeErr.Error(), closeErr)
	}
	return n, nil
}

// trackingReader remembers the first non-EOF read error so body failures can
// be told apart from local ones.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
