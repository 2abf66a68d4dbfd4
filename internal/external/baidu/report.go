package baidu

import (
	"encoding/json"
	"errors"
)

// reportResponse accepts both report shapes:
//
//	{"result": {"items": [[dates...], [[uv], ["--"], ...]]}}
//	{"header": {"status": 0}, "body": {"data": [[uv, ...]]}}
type reportResponse struct {
	Result *struct {
		Items []json.RawMessage `json:"items"`
	} `json:"result"`
	Header *struct {
		Status int    `json:"status"`
		Desc   string `json:"desc"`
	} `json:"header"`
	Body *struct {
		Data [][]json.RawMessage `json:"data"`
	} `json:"body"`
}

var errUnrecognized = errors.New("unrecognized report response")

// visitors extracts the visitor total
func (r *reportResponse) visitors() (int64, error) {
	if r.Result != nil && len(r.Result.Items) >= 2 {
		var rows [][]interface{}
		if err := json.Unmarshal(r.Result.Items[1], &rows); err != nil {
			return 0, err
		}
		var total int64
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			// days without data are reported as "--"
			if v, ok := row[0].(float64); ok {
				total += int64(v)
			}
		}
		return total, nil
	}

	if r.Header != nil {
		if r.Header.Status != 0 {
			return 0, &APIError{Status: r.Header.Status, Desc: r.Header.Desc}
		}
		if r.Body == nil || len(r.Body.Data) == 0 || len(r.Body.Data[0]) == 0 {
			return 0, nil
		}
		var v float64
		if err := json.Unmarshal(r.Body.Data[0][0], &v); err != nil {
			return 0, nil
		}
		return int64(v), nil
	}

	return 0, errUnrecognized
}
