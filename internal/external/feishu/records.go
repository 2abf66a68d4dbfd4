package feishu

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gdtech/hackathon/internal/contracts"
)

type listResponse struct {
	envelope
	Data struct {
		HasMore   bool   `json:"has_more"`
		PageToken string `json:"page_token"`
		Total     int    `json:"total"`
		Items     []struct {
			RecordID string         `json:"record_id"`
			Fields   map[string]any `json:"fields"`
		} `json:"items"`
	} `json:"data"`
}

type recordResponse struct {
	envelope
	Data struct {
		Record struct {
			RecordID string         `json:"record_id"`
			Fields   map[string]any `json:"fields"`
		} `json:"record"`
	} `json:"data"`
}

type fieldsBody struct {
	Fields map[string]any `json:"fields"`
}

// ListRecords reads every row of collection, following page tokens
func (c *Client) ListRecords(ctx context.Context, collection contracts.Collection) ([]contracts.Record, error) {
	tableID, err := c.table(collection)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var records []contracts.Record
	pageToken := ""
	pages := 0

	for {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(pageSize))
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		var resp listResponse
		if err := c.call(ctx, http.MethodGet, c.recordsPath(tableID)+"?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		pages++

		for _, item := range resp.Data.Items {
			fields := item.Fields
			if fields == nil {
				fields = map[string]any{}
			}
			records = append(records, contracts.Record{ID: item.RecordID, Fields: fields})
		}

		if !resp.Data.HasMore || resp.Data.PageToken == "" {
			break
		}
		pageToken = resp.Data.PageToken
	}

	c.logger.WithFields(map[string]interface{}{
		"collection": collection,
		"records":    len(records),
		"pages":      pages,
		"duration":   time.Since(start),
	}).Debug("Listed bitable records")

	return records, nil
}

// CreateRecord appends a row and returns its record id
func (c *Client) CreateRecord(ctx context.Context, collection contracts.Collection, fields map[string]any) (string, error) {
	tableID, err := c.table(collection)
	if err != nil {
		return "", err
	}

	var resp recordResponse
	if err := c.call(ctx, http.MethodPost, c.recordsPath(tableID), fieldsBody{Fields: fields}, &resp); err != nil {
		return "", fmt.Errorf("create %s record: %w", collection, err)
	}
	return resp.Data.Record.RecordID, nil
}

// UpdateRecord overwrites the given fields of one row
func (c *Client) UpdateRecord(ctx context.Context, collection contracts.Collection, recordID string, fields map[string]any) error {
	tableID, err := c.table(collection)
	if err != nil {
		return err
	}

	var resp recordResponse
	path := c.recordsPath(tableID) + "/" + url.PathEscape(recordID)
	if err := c.call(ctx, http.MethodPut, path, fieldsBody{Fields: fields}, &resp); err != nil {
		return fmt.Errorf("update %s record %s: %w", collection, recordID, err)
	}
	return nil
}
