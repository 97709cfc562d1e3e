// Package meter syncs daily yields from a parlor milk-meter feed.
package meter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"milk-herd-backend/config"
	"milk-herd-backend/internal/metrics"
	"milk-herd-backend/internal/model"
	"milk-herd-backend/internal/parse"
	"milk-herd-backend/internal/pedigree"
)

// Layouts accepted for a reading's date. Timestamps are reduced to the
// calendar day in the configured timezone.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// Store is the persistence the sync needs.
type Store interface {
	FindByEarTag(ctx context.Context, tag string) (*model.Animal, error)
	UpsertMilkRecords(ctx context.Context, records []model.MilkRecord) (int, error)
}

// Result summarises one sync cycle.
type Result struct {
	Fetched int
	Stored  int
	Skipped int
	Invalid int
}

// Service polls the meter feed and stores its readings.
type Service struct {
	cfg    config.MeterConfig
	store  Store
	client *http.Client
	loc    *time.Location
}

// NewService creates and initializes a new meter sync service.
func NewService(cfg config.MeterConfig, store Store) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Meter sync will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	if cfg.Request.PageSize <= 0 {
		cfg.Request.PageSize = 100
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Warning: Invalid meter timezone %q: %v. Using UTC.", cfg.Timezone, err)
		loc = time.UTC
	}

	return &Service{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		loc: loc,
	}
}

// Run syncs once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Meter sync is disabled. Not starting.")
		return
	}
	log.Println("Starting meter sync service...")

	s.SyncOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Meter sync service shutting down.")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SyncOnce fetches every page of the feed and upserts the readings whose ear
// tag is registered.
func (s *Service) SyncOnce(ctx context.Context) (Result, error) {
	log.Println("Executing meter sync cycle...")

	var allItems []ApiItem
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching page %d: %v", page, err)
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
		log.Printf("Fetched page %d, %d/%d readings", page, len(allItems), total)
	}

	res := Result{Fetched: len(allItems)}
	if fetchErr != nil && len(allItems) == 0 {
		log.Println("Meter sync aborted due to fetch error with no readings retrieved.")
		return res, fetchErr
	}

	records := make([]model.MilkRecord, 0, len(allItems))
	// Later readings for the same animal and day win.
	index := make(map[string]int)
	for _, item := range allItems {
		rec, err := s.toRecord(ctx, item)
		switch {
		case errors.Is(err, pedigree.ErrNotFound):
			log.Printf("Skipping reading for unknown ear tag %q", item.EarTag)
			res.Skipped++
			continue
		case err != nil:
			log.Printf("Warning: invalid meter reading %+v: %v", item, err)
			res.Invalid++
			continue
		}
		key := fmt.Sprintf("%d/%s", rec.AnimalID, time.Time(rec.Date).Format("2006-01-02"))
		if i, ok := index[key]; ok {
			records[i] = rec
			continue
		}
		index[key] = len(records)
		records = append(records, rec)
	}

	metrics.AddMeterRecords(metrics.MeterSkipped, res.Skipped)
	metrics.AddMeterRecords(metrics.MeterInvalid, res.Invalid)

	n, err := s.store.UpsertMilkRecords(ctx, records)
	if err != nil {
		log.Printf("Error storing meter readings: %v", err)
		return res, err
	}
	res.Stored = n
	metrics.AddMeterRecords(metrics.MeterStored, n)

	log.Printf("Meter sync cycle finished: %d stored, %d skipped, %d invalid.", res.Stored, res.Skipped, res.Invalid)
	return res, fetchErr
}

func (s *Service) toRecord(ctx context.Context, item ApiItem) (model.MilkRecord, error) {
	day, err := s.parseDate(item.Date)
	if err != nil {
		return model.MilkRecord{}, err
	}
	liters, err := parse.Yield(string(item.Liters))
	if err != nil {
		return model.MilkRecord{}, err
	}
	animal, err := s.store.FindByEarTag(ctx, item.EarTag)
	if err != nil {
		return model.MilkRecord{}, err
	}
	return model.MilkRecord{
		AnimalID: animal.ID,
		Date:     model.NewDate(day),
		Liters:   liters,
		Notes:    item.Notes,
	}, nil
}

// parseDate reads a reading's date in the configured timezone.
func (s *Service) parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t.In(s.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date %q", raw)
}

func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
