package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

type Index interface {
	Replace(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, from, size int) (int64, []Document, error)
}

// NewClient connects to Elasticsearch and checks the cluster answers.
func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

type ESIndex struct {
	Client *elasticsearch.Client
	Name   string
}

// Replace bulk-loads docs into a new index named after the alias and then
// moves the alias onto it in one atomic update. Searches keep hitting the
// previous documents until the swap. The indices the alias pointed at before
// are deleted afterwards.
func (x *ESIndex) Replace(ctx context.Context, docs []Document) error {
	target := fmt.Sprintf("%s-%d", x.Name, time.Now().UTC().UnixNano())
	if err := x.createIndex(ctx, target); err != nil {
		return err
	}
	if err := x.bulk(ctx, target, docs); err != nil {
		x.dropIndices(ctx, target)
		return err
	}

	previous, concrete, err := x.aliasTargets(ctx)
	if err != nil {
		x.dropIndices(ctx, target)
		return err
	}
	if err := x.swapAlias(ctx, target, previous, concrete); err != nil {
		x.dropIndices(ctx, target)
		return err
	}
	x.dropIndices(ctx, previous...)
	return nil
}

func (x *ESIndex) createIndex(ctx context.Context, name string) error {
	res, err := x.Client.Indices.Create(name, x.Client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", name, res.Status())
	}
	return nil
}

func (x *ESIndex) bulk(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": d.ProductID.String()}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(d); err != nil {
			return err
		}
	}

	res, err := x.Client.Bulk(bytes.NewReader(buf.Bytes()),
		x.Client.Bulk.WithContext(ctx),
		x.Client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.Status())
	}

	var r struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return fmt.Errorf("bulk index: decode: %w", err)
	}
	if r.Errors {
		return fmt.Errorf("bulk index: some documents were rejected")
	}
	return nil
}

// aliasTargets lists the indices behind the alias. concrete reports a plain
// index occupying the alias name, left over from before aliases were used.
func (x *ESIndex) aliasTargets(ctx context.Context) (indices []string, concrete bool, err error) {
	res, err := x.Client.Indices.GetAlias(
		x.Client.Indices.GetAlias.WithContext(ctx),
		x.Client.Indices.GetAlias.WithName(x.Name),
	)
	if err != nil {
		return nil, false, fmt.Errorf("get alias: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		exists, err := x.Client.Indices.Exists([]string{x.Name}, x.Client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return nil, false, fmt.Errorf("index exists: %w", err)
		}
		exists.Body.Close()
		return nil, exists.StatusCode == http.StatusOK, nil
	}
	if res.IsError() {
		return nil, false, fmt.Errorf("get alias: %s", res.Status())
	}

	var byIndex map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&byIndex); err != nil {
		return nil, false, fmt.Errorf("get alias: decode: %w", err)
	}
	for name := range byIndex {
		indices = append(indices, name)
	}
	slices.Sort(indices)
	return indices, false, nil
}

func (x *ESIndex) swapAlias(ctx context.Context, target string, previous []string, concrete bool) error {
	actions := make([]map[string]any, 0, len(previous)+2)
	if concrete {
		actions = append(actions, map[string]any{"remove_index": map[string]any{"index": x.Name}})
	}
	for _, old := range previous {
		actions = append(actions, map[string]any{"remove": map[string]any{"index": old, "alias": x.Name}})
	}
	actions = append(actions, map[string]any{"add": map[string]any{"index": target, "alias": x.Name}})

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{"actions": actions}); err != nil {
		return err
	}
	res, err := x.Client.Indices.UpdateAliases(&buf, x.Client.Indices.UpdateAliases.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("update aliases: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("update aliases: %s", res.Status())
	}
	return nil
}

// dropIndices is best effort: a leftover index only costs disk.
func (x *ESIndex) dropIndices(ctx context.Context, names ...string) {
	if len(names) == 0 {
		return
	}
	res, err := x.Client.Indices.Delete(names, x.Client.Indices.Delete.WithContext(ctx))
	if err == nil {
		res.Body.Close()
		if res.IsError() {
			err = fmt.Errorf("%s", res.Status())
		}
	}
	if err != nil {
		logging.FromContext(ctx).Warn("drop_index_error", "indices", names, "error", err)
	}
}

func (x *ESIndex) Search(ctx context.Context, query string, from, size int) (int64, []Document, error) {
	q := strings.TrimSpace(query)
	var match map[string]any
	if q == "" {
		match = map[string]any{"match_all": map[string]any{}}
	} else {
		match = map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"name^2", "family", "category"},
				"fuzziness": "AUTO",
			},
		}
	}
	body := map[string]any{
		"query": match,
		"from":  from,
		"size":  size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}

	res, err := x.Client.Search(
		x.Client.Search.WithContext(ctx),
		x.Client.Search.WithIndex(x.Name),
		x.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search: decode: %w", err)
	}

	docs := make([]Document, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
