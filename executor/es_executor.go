package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/search"
)

// ESExecutorOptions Elasticsearch 连接选项
type ESExecutorOptions struct {
	Addresses  []string      `cfg:"addresses" def:"[\"http://localhost:9200\"]"`
	Username   string        `cfg:"username"`
	Password   string        `cfg:"password"`
	APIKey     string        `cfg:"apiKey"`
	Timeout    time.Duration `cfg:"timeout" def:"30s"`
	MaxRetries int           `cfg:"maxRetries" def:"3"`
}

// ESExecutor 表名对应索引名，命中文档的 _source 作为记录，_id 作为 id 列的缺省值
type ESExecutor struct {
	client *elasticsearch.Client
}

func NewESExecutorWithOptions(opts *ESExecutorOptions) (*ESExecutor, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: opts.Timeout,
		},
		MaxRetries: opts.MaxRetries,
	})
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch.NewClient failed")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to elasticsearch")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("elasticsearch connection error: %s", res.String())
	}

	return NewESExecutor(client), nil
}

func NewESExecutor(client *elasticsearch.Client) *ESExecutor {
	return &ESExecutor{client: client}
}

func (e *ESExecutor) Close() error {
	return nil
}

// searchBody 构建 _search 请求体
func searchBody(criteria *search.Criteria) (map[string]any, error) {
	cols, err := columns(criteria)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"query":            criteria.Filter().ToES(),
		"from":             criteria.FirstResult(),
		"size":             criteria.MaxResults(),
		"track_total_hits": true,
	}
	if order := criteria.Order(); order != nil {
		direction := "asc"
		if !order.Ascending() {
			direction = "desc"
		}
		body["sort"] = []map[string]any{{order.Field(): map[string]any{"order": direction}}}
	}
	if cols != nil {
		body["_source"] = cols
	}
	return body, nil
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ESExecutor) Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[Record], error) {
	table, err := tableOf(criteria)
	if err != nil {
		return nil, err
	}
	body, err := searchBody(criteria)
	if err != nil {
		return nil, err
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search body")
	}

	req := esapi.SearchRequest{
		Index: []string{table},
		Body:  bytes.NewReader(buf),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute search")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("search error: %s", res.String())
	}

	var result esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode search result")
	}

	idField := criteria.DataDefinition().IdentifierField()
	records := make([]Record, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		record := Record{}
		for k, v := range hit.Source {
			record[k] = v
		}
		if _, ok := record[idField]; !ok {
			record[idField] = hit.ID
		}
		records = append(records, record)
	}
	return search.NewResultPage(result.Hits.Total.Value, records), nil
}

func (e *ESExecutor) Count(ctx context.Context, criteria *search.Criteria) (int64, error) {
	table, err := tableOf(criteria)
	if err != nil {
		return 0, err
	}
	buf, err := json.Marshal(map[string]any{"query": criteria.Filter().ToES()})
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal count body")
	}

	req := esapi.CountRequest{
		Index: []string{table},
		Body:  bytes.NewReader(buf),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return 0, errors.Wrap(err, "failed to execute count")
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, errors.Errorf("count error: %s", res.String())
	}

	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, errors.Wrap(err, "failed to decode count result")
	}
	return result.Count, nil
}

// Upsert 以 id 作为文档 _id 写入索引，写入后立即刷新
func (e *ESExecutor) Upsert(ctx context.Context, def search.Definition, record Record) error {
	table, id, _, err := prepareUpsert(def, record)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	req := esapi.IndexRequest{
		Index:      table,
		DocumentID: strconv.FormatInt(id, 10),
		Body:       bytes.NewReader(buf),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute index")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("index error: %s", res.String())
	}
	return nil
}

// Remove 删除文档，文档不存在时不报错
func (e *ESExecutor) Remove(ctx context.Context, def search.Definition, id int64) error {
	table, err := tableOfDefinition(def)
	if err != nil {
		return err
	}

	req := esapi.DeleteRequest{
		Index:      table,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute delete")
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.Errorf("delete error: %s", res.String())
	}
	return nil
}
