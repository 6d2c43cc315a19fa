package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/arcadehub/users-service/internal/domain/event"
)

// ESIndexer mirrors projected accounts into Elasticsearch so the API can
// serve /users/search. The index is as disposable as the read model.
type ESIndexer struct {
	Client    *elasticsearch.Client
	IndexName string
}

var _ Indexer = (*ESIndexer)(nil)

func (x *ESIndexer) Index(ctx context.Context, evt event.AccountCreated) error {
	doc := map[string]any{
		"id":      evt.ID,
		"email":   evt.Email,
		"name":    evt.Name,
		"profile": evt.Profile,
		"active":  evt.Active,
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      x.IndexName,
		DocumentID: evt.ID,
		Body:       strings.NewReader(string(b)),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, x.Client)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index response: %s", res.Status())
	}
	return nil
}

func (x *ESIndexer) Remove(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.IndexName, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, x.Client)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	// 404 means the doc never made it to the index; nothing to undo.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es delete response: %s", res.Status())
	}
	return nil
}
