// Package redis implements the datastore on Redis 8+ with the query
// engine. Entities are stored as hashes under typed key prefixes;
// lookups and similarity searches go through FT.SEARCH, with embeddings
// held as float32 little-endian blobs in a vector field.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
)

var _ datastore.Datastore = (*Store)(nil)

// Key prefixes for stored hashes.
const (
	keyAirport = "airport:"
	keyAmenity = "amenity:"
	keyFlight  = "flight:"
	keyPolicy  = "policy:"
	keyTicket  = "ticket:"
	keySeat    = "seat:"
)

// Index names.
const (
	idxAirports = "idx:airports"
	idxFlights  = "idx:flights"
	idxAmenity  = "idx:amenities"
	idxPolicies = "idx:policies"
	idxTickets  = "idx:tickets"
	idxSeats    = "idx:seats"
)

// searchLimit caps FT.SEARCH result pages for non-KNN queries.
const searchLimit = 100

// Store implements datastore.Datastore via rueidis.
type Store struct {
	client rueidis.Client
	logger *zap.Logger

	// vectorDim is fixed at index creation; LoadData derives it from
	// the first embedded record.
	vectorDim int
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg config.DatastoreConfig, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.User,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s := &Store{client: client, logger: logger}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to redis", zap.Strings("addrs", cfg.Addrs))
	return s, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// hgetAll fetches one hash, mapping an empty hash to ErrNotFound.
func (s *Store) hgetAll(ctx context.Context, op, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &datastore.Error{Op: op, Err: err}
	}
	if len(m) == 0 {
		return nil, &datastore.Error{Op: op, Err: datastore.ErrNotFound}
	}
	return m, nil
}

// hsetBatch stores many hashes in a single DoMulti round-trip.
func (s *Store) hsetBatch(ctx context.Context, keys []string, fields []map[string]string) error {
	if len(keys) == 0 {
		return nil
	}
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmd := s.b().Hset().Key(key).FieldValue()
		for k, v := range fields[i] {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("key %s: %w", keys[i], err)
		}
	}
	return nil
}

// deletePrefix removes every key under a prefix via SCAN + DEL.
func (s *Store) deletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(prefix + "*").Count(500).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		if len(res.Elements) > 0 {
			del := s.b().Del().Key(res.Elements...).Build()
			if err := s.do(ctx, del).Error(); err != nil {
				return fmt.Errorf("del %s: %w", prefix, err)
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// searchHashes runs FT.SEARCH and returns the matched hashes.
// The RESP2 reply is 2-stride: [total, key1, fields1, key2, fields2, ...].
func (s *Store) searchHashes(ctx context.Context, op, index, query string, limit int) ([]map[string]string, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(index, query, "LIMIT", "0", strconv.Itoa(limit), "DIALECT", "2").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &datastore.Error{Op: op, Err: err}
	}
	return parseSearchReply(raw), nil
}

// searchKNN runs a KNN similarity search, returning matched hashes with
// the cosine distance already converted to similarity.
func (s *Store) searchKNN(ctx context.Context, op, index string, vector []float32, k int) ([]scoredHash, error) {
	query := fmt.Sprintf("*=>[KNN %d @embedding $BLOB AS __score]", k)
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(index, query,
			"SORTBY", "__score",
			"PARAMS", "2", "BLOB", vectorToBytes(vector),
			"LIMIT", "0", strconv.Itoa(k),
			"DIALECT", "2").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &datastore.Error{Op: op, Err: err}
	}

	var out []scoredHash
	for _, fields := range parseSearchReply(raw) {
		h := scoredHash{fields: fields}
		if d, err := strconv.ParseFloat(fields["__score"], 64); err == nil {
			h.similarity = 1 - d // cosine distance → similarity
		}
		delete(fields, "__score")
		out = append(out, h)
	}
	return out, nil
}

type scoredHash struct {
	fields     map[string]string
	similarity float64
}

func parseSearchReply(raw []rueidis.RedisMessage) []map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out []map[string]string
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := make(map[string]string, len(fields)/2)
		for j := 0; j+1 < len(fields); j += 2 {
			name, err := fields[j].ToString()
			if err != nil {
				continue
			}
			value, err := fields[j+1].ToString()
			if err != nil {
				continue
			}
			m[name] = value
		}
		out = append(out, m)
	}
	return out
}

// isRedisErr checks if err is a Redis server error containing substr.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// tagEscaper escapes TAG query values per the query syntax rules.
var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func tagFilter(field, value string) string {
	return fmt.Sprintf("@%s:{%s}", field, tagEscaper.Replace(value))
}

func numericFilter(field string, min, max string) string {
	return fmt.Sprintf("@%s:[%s %s]", field, min, max)
}
