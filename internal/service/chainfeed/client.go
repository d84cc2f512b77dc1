package chainfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"OptionPulse/internal/domain/models"
	drepo "OptionPulse/internal/domain/repository"
	"OptionPulse/internal/services/features"

	"github.com/gorilla/websocket"
)

// Trailing frames kept per contract for the volume baseline.
const volumeHistoryWindow = 20

// Client implements a SnapshotStream backed by the option-chain WebSocket
// feed. Frames arrive either as precomputed indicator snapshots or as raw
// chain rows; raw rows are forwarded only when they carry enough context to
// build a snapshot.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	strikeStep     float64
	strikeWindow   int
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool

	// per-contract state for deriving snapshots from raw chain frames;
	// touched only by the read loop
	prevOI     map[models.SignalKey]int64
	volHistory map[models.SignalKey][]int64
}

// New creates a new chain-feed SnapshotStream. strikeStep and strikeWindow
// bound the ATM window used when deriving indicators from raw chain frames.
func New(apiKey, websocketURL string, symbols []string, strikeStep float64, strikeWindow int, reconnectDelay, pingInterval time.Duration) drepo.SnapshotStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		strikeStep:     strikeStep,
		strikeWindow:   strikeWindow,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		prevOI:         make(map[models.SignalKey]int64),
		volHistory:     make(map[models.SignalKey][]int64),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("chainfeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("chainfeed: connected")
	return nil
}

// Subscribe subscribes to the option chains of the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("chainfeed not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s, "feed": "option_chain"}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("chainfeed: subscribed %s", s)
	}
	return nil
}

type feedSnapshot struct {
	Symbol      string  `json:"symbol"`
	Strike      float64 `json:"strike"`
	OptionType  string  `json:"option_type"`
	PCR         float64 `json:"pcr"`
	RSI         float64 `json:"rsi"`
	OI          int64   `json:"oi"`
	OIChangePct float64 `json:"oi_change_pct"`
	Volume      int64   `json:"volume"`
	AvgVolume   float64 `json:"avg_volume"`
	LastPrice   float64 `json:"last_price"`
	Ts          int64   `json:"ts"` // ms
}

type feedMessage struct {
	Type string         `json:"type"`
	Data []feedSnapshot `json:"data"`

	// chain frames: raw rows plus underlying context
	Symbol string            `json:"symbol"`
	Spot   float64           `json:"spot"`
	RSI    float64           `json:"rsi"`
	Ts     int64             `json:"ts"` // ms
	Rows   []models.ChainRow `json:"rows"`
}

// deriveFromChain turns one raw chain frame into per-contract snapshots.
// The window PCR is shared by every contract in the frame; OI change and the
// volume baseline come from state accumulated across frames.
func (c *Client) deriveFromChain(m *feedMessage) []*models.IndicatorSnapshot {
	atm := features.ATMStrike(m.Spot, c.strikeStep)
	window := features.StrikeWindow(atm, c.strikeStep, c.strikeWindow)
	pcr, ok := features.WindowPCR(m.Rows, window)
	if !ok {
		return nil
	}

	inWindow := make(map[float64]struct{}, len(window))
	for _, s := range window {
		inWindow[s] = struct{}{}
	}

	ts := time.UnixMilli(m.Ts).UTC()
	out := make([]*models.IndicatorSnapshot, 0, len(m.Rows))
	for _, row := range m.Rows {
		if _, ok := inWindow[row.Strike]; !ok {
			continue
		}
		key := models.SignalKey{Symbol: m.Symbol, Strike: row.Strike, OptionType: row.OptionType}

		oiPct, _ := features.OIChangePct(row.OpenInterest, c.prevOI[key])
		c.prevOI[key] = row.OpenInterest

		avgVol := features.RollingAverage(c.volHistory[key], volumeHistoryWindow)
		hist := append(c.volHistory[key], row.Volume)
		if len(hist) > volumeHistoryWindow {
			hist = hist[len(hist)-volumeHistoryWindow:]
		}
		c.volHistory[key] = hist

		out = append(out, &models.IndicatorSnapshot{
			Symbol:      m.Symbol,
			Strike:      row.Strike,
			OptionType:  row.OptionType,
			PCR:         pcr,
			RSI:         m.RSI,
			OI:          row.OpenInterest,
			OIChangePct: oiPct,
			Volume:      row.Volume,
			AvgVolume:   avgVol,
			LastPrice:   row.LastPrice,
			Timestamp:   ts,
		})
	}
	return out
}

// Read streams indicator snapshots and errors. The channels close when the
// read loop exits; the collector decides whether to reconnect.
func (c *Client) Read(ctx context.Context) (<-chan *models.IndicatorSnapshot, <-chan error) {
	snaps := make(chan *models.IndicatorSnapshot, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("chainfeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("chainfeed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-snapshot frames
					continue
				}
				var batch []*models.IndicatorSnapshot
				switch m.Type {
				case "snapshot":
					for _, d := range m.Data {
						batch = append(batch, &models.IndicatorSnapshot{
							Symbol:      d.Symbol,
							Strike:      d.Strike,
							OptionType:  models.NormalizeOptionType(d.OptionType),
							PCR:         d.PCR,
							RSI:         d.RSI,
							OI:          d.OI,
							OIChangePct: d.OIChangePct,
							Volume:      d.Volume,
							AvgVolume:   d.AvgVolume,
							LastPrice:   d.LastPrice,
							Timestamp:   time.UnixMilli(d.Ts).UTC(),
						})
					}
				case "chain":
					batch = c.deriveFromChain(&m)
				default:
					continue
				}
				for _, snap := range batch {
					select {
					case snaps <- snap:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return snaps, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
