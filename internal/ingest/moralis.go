package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

const moralisReadTimeout = 90 * time.Second

// MoralisProvider is the fallback whale-data source. Same contract as
// Alchemy with Moralis's header auth and epoch-second windows.
type MoralisProvider struct {
	wsEndpoint   string
	restEndpoint string
	apiKey       string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewMoralisProvider configures the provider.
func NewMoralisProvider(wsEndpoint, restEndpoint, apiKey string, log zerolog.Logger) *MoralisProvider {
	l := log.With().Str("provider", "moralis").Logger()
	return &MoralisProvider{
		wsEndpoint:   wsEndpoint,
		restEndpoint: restEndpoint,
		apiKey:       apiKey,
		httpClient:   newRESTClient(l),
		log:          l,
	}
}

func (p *MoralisProvider) Name() string { return "moralis" }

func (p *MoralisProvider) StreamTransfers(ctx context.Context, chain string) (<-chan persistence.WhaleTransfer, <-chan error, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.wsEndpoint, http.Header{
		"X-API-Key": []string{p.apiKey},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("moralis: dial %s: %w", p.wsEndpoint, err)
	}

	sub := map[string]interface{}{
		"action": "subscribe",
		"topic":  "whale-transfers:" + chain,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("moralis: subscribe %s: %w", chain, err)
	}

	events := make(chan persistence.WhaleTransfer)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			conn.SetReadDeadline(time.Now().Add(moralisReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("moralis: stream read: %w", err)
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

func (p *MoralisProvider) Backfill(ctx context.Context, chain string, from, to time.Time) ([]persistence.WhaleTransfer, error) {
	requestID := uuid.NewString()

	u, err := url.Parse(p.restEndpoint + "/whale-transfers/" + chain)
	if err != nil {
		return nil, fmt.Errorf("moralis: bad endpoint: %w", err)
	}
	q := u.Query()
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("moralis: build backfill request: %w", err)
	}
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moralis: backfill %s: %w", chain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("moralis: backfill %s: status %d: %s", chain, resp.StatusCode, body)
	}

	var payload struct {
		Result []wireTransfer `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("moralis: decode backfill: %w", err)
	}

	out := make([]persistence.WhaleTransfer, len(payload.Result))
	for i, w := range payload.Result {
		out[i] = w.toTransfer(persistence.Provenance{
			Provider:  p.Name(),
			Method:    "rest",
			RequestID: requestID,
		})
	}
	return out, nil
}
