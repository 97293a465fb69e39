package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"velora_back_end/internal/apperr"
	"velora_back_end/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const ordersIndex = "velora-orders"

// ElasticIndexer indexe les commandes pour la recherche admin.
// L'indexation est un confort : un échec ne fait jamais échouer la commande.
type ElasticIndexer struct {
	client *elasticsearch.Client
}

func NewElasticIndexer(client *elasticsearch.Client) *ElasticIndexer {
	return &ElasticIndexer{client: client}
}

func (e *ElasticIndexer) Index(ctx context.Context, o *models.Order) error {
	if e.client == nil {
		return fmt.Errorf("client Elasticsearch non initialisé")
	}

	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      ordersIndex,
		DocumentID: o.ID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("erreur envoi Elastic: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elastic a renvoyé une erreur pour %s: %s", o.ID, res.String())
	}
	return nil
}

// Search recherche des commandes par id, utilisateur, statut ou nom d'article
func (e *ElasticIndexer) Search(ctx context.Context, query string, limit int) ([]models.Order, error) {
	if e.client == nil {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "Recherche de commandes indisponible")
	}

	var buf bytes.Buffer
	q := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"id", "user_id", "status", "payment_intent_id", "items.name"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Erreur encodage requête", err)
	}

	req := esapi.SearchRequest{
		Index: []string{ordersIndex},
		Body:  &buf,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Erreur requête Elastic", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var detail map[string]interface{}
		_ = json.NewDecoder(res.Body).Decode(&detail)
		log.Printf("❌ Elasticsearch erreur: %+v", detail)
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "Index non trouvé ou vide")
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.Order `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Erreur décodage JSON", err)
	}

	results := make([]models.Order, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
