package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

const alchemyReadTimeout = 90 * time.Second

// AlchemyProvider streams transfers over an Alchemy-style websocket and
// backfills over REST.
type AlchemyProvider struct {
	wsEndpoint   string
	restEndpoint string
	apiKey       string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewAlchemyProvider configures the provider.
func NewAlchemyProvider(wsEndpoint, restEndpoint, apiKey string, log zerolog.Logger) *AlchemyProvider {
	l := log.With().Str("provider", "alchemy").Logger()
	return &AlchemyProvider{
		wsEndpoint:   wsEndpoint,
		restEndpoint: restEndpoint,
		apiKey:       apiKey,
		httpClient:   newRESTClient(l),
		log:          l,
	}
}

func (p *AlchemyProvider) Name() string { return "alchemy" }

// StreamTransfers dials the websocket, subscribes to the chain's transfer
// feed and pumps decoded events until the context ends or the read loop
// fails.
func (p *AlchemyProvider) StreamTransfers(ctx context.Context, chain string) (<-chan persistence.WhaleTransfer, <-chan error, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.wsEndpoint, http.Header{
		"Authorization": []string{"Bearer " + p.apiKey},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("alchemy: dial %s: %w", p.wsEndpoint, err)
	}

	sub := map[string]interface{}{
		"method": "subscribe",
		"params": map[string]string{"channel": "whale_transfers", "chain": chain},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("alchemy: subscribe %s: %w", chain, err)
	}

	events := make(chan persistence.WhaleTransfer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer conn.Close()

		// Unblock the read loop when the context ends.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			conn.SetReadDeadline(time.Now().Add(alchemyReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("alchemy: stream read: %w", err)
				}
				return
			}
			var wire wireTransfer
			if err := json.Unmarshal(msg, &wire); err != nil {
				p.log.Warn().Err(err).Str("chain", chain).Msg("dropping undecodable stream message")
				continue
			}
			transfer := wire.toTransfer(persistence.Provenance{
				Provider:  p.Name(),
				Method:    "ws",
				RequestID: uuid.NewString(),
			})
			select {
			case events <- transfer:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs, nil
}

// Backfill fetches the [from, to) transfer window over REST.
func (p *AlchemyProvider) Backfill(ctx context.Context, chain string, from, to time.Time) ([]persistence.WhaleTransfer, error) {
	requestID := uuid.NewString()

	u, err := url.Parse(p.restEndpoint + "/v1/transfers")
	if err != nil {
		return nil, fmt.Errorf("alchemy: bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("chain", chain)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("alchemy: build backfill request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alchemy: backfill %s: %w", chain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("alchemy: backfill %s: status %d: %s", chain, resp.StatusCode, body)
	}

	var payload struct {
		Transfers []wireTransfer `json:"transfers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("alchemy: decode backfill: %w", err)
	}

	out := make([]persistence.WhaleTransfer, len(payload.Transfers))
	for i, w := range payload.Transfers {
		out[i] = w.toTransfer(persistence.Provenance{
			Provider:  p.Name(),
			Method:    "rest",
			RequestID: requestID,
		})
	}
	return out, nil
}
