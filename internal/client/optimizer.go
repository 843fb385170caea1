package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/aioptimizer/frontend/internal/models"
)

// maxReportSize caps report downloads held in memory
const maxReportSize = 32 << 20

// Optimize runs one optimizer over the request
func (c *Client) Optimize(ctx context.Context, mode models.Mode, req models.OptimizeRequest) (*models.Optimization, error) {
	if _, err := models.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	var result models.Optimization
	if err := c.do(ctx, http.MethodPost, "/optimize/"+string(mode), req, &result); err != nil {
		return nil, err
	}
	if result.Mode == "" {
		result.Mode = mode
	}
	return &result, nil
}

// ListOptimizations returns the caller's optimization history
func (c *Client) ListOptimizations(ctx context.Context) ([]models.Optimization, error) {
	var history []models.Optimization
	if err := c.do(ctx, http.MethodGet, "/optimizations", nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// DownloadReport fetches the binary report for one optimization
func (c *Client) DownloadReport(ctx context.Context, optimizationID string) (*models.Report, error) {
	resp, err := c.send(ctx, http.MethodGet, "/optimizations/"+url.PathEscape(optimizationID)+"/report", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if len(body) > maxReportSize {
		return nil, fmt.Errorf("report %s exceeds %d bytes", optimizationID, maxReportSize)
	}

	report := &models.Report{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    fmt.Sprintf("report-%s.pdf", optimizationID),
		Size:        int64(len(body)),
		Body:        body,
	}
	if report.ContentType == "" {
		report.ContentType = "application/octet-stream"
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		report.Filename = params["filename"]
	}

	return report, nil
}
