package stripe

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	orderdomain "github.com/railzwaylabs/atelier/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/atelier/internal/payment/domain"
	"github.com/shopspring/decimal"
)

const (
	// Stripe rejects metadata values longer than 500 characters and objects
	// with more than 50 keys.
	metadataValueLimit = 500
	maxCartChunks      = 40

	cartChunkPrefix = "cart_"
)

// CartMetadata encodes items as sku:quantity:unit_cents:name tokens and
// splits the result across cart_0..cart_n so every value fits Stripe's limit.
func CartMetadata(items []orderdomain.LineItem) (map[string]string, error) {
	if len(items) == 0 {
		return map[string]string{}, nil
	}
	tokens := make([]string, 0, len(items))
	for _, item := range items {
		tokens = append(tokens, strings.Join([]string{
			url.QueryEscape(item.SKU),
			strconv.Itoa(item.Quantity),
			strconv.FormatInt(MinorUnits(item.UnitPrice), 10),
			url.QueryEscape(item.Name),
		}, ":"))
	}
	encoded := strings.Join(tokens, ",")

	chunks := (len(encoded) + metadataValueLimit - 1) / metadataValueLimit
	if chunks > maxCartChunks {
		return nil, paymentdomain.ErrCartTooLarge
	}
	out := make(map[string]string, chunks)
	for i := 0; i < chunks; i++ {
		end := min((i+1)*metadataValueLimit, len(encoded))
		out[cartChunkPrefix+strconv.Itoa(i)] = encoded[i*metadataValueLimit : end]
	}
	return out, nil
}

// cartFromMetadata reassembles the chunked cart. Sessions created before
// chunking carry the cart as a JSON array under "cart".
func cartFromMetadata(metadata map[string]string) ([]orderdomain.LineItem, error) {
	var b strings.Builder
	for i := 0; i < maxCartChunks; i++ {
		chunk, ok := metadata[cartChunkPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		b.WriteString(chunk)
	}
	if b.Len() == 0 {
		raw := metadata[metadataCart]
		if raw == "" {
			return nil, nil
		}
		var items []orderdomain.LineItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		return items, nil
	}

	tokens := strings.Split(b.String(), ",")
	items := make([]orderdomain.LineItem, 0, len(tokens))
	for _, token := range tokens {
		item, err := decodeCartToken(token)
		if err != nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeCartToken(token string) (orderdomain.LineItem, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return orderdomain.LineItem{}, paymentdomain.ErrInvalidEvent
	}
	sku, err := url.QueryUnescape(parts[0])
	if err != nil {
		return orderdomain.LineItem{}, err
	}
	quantity, err := strconv.Atoi(parts[1])
	if err != nil {
		return orderdomain.LineItem{}, err
	}
	cents, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return orderdomain.LineItem{}, err
	}
	name, err := url.QueryUnescape(parts[3])
	if err != nil {
		return orderdomain.LineItem{}, err
	}
	return orderdomain.LineItem{
		SKU:       sku,
		Name:      name,
		UnitPrice: decimal.New(cents, -2),
		Quantity:  quantity,
	}, nil
}
