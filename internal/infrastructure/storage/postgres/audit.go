package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "fireblue/internal/core/context"
	"fireblue/internal/core/id"
	"fireblue/internal/domain/closing"
)

const auditEntityClosing = "fechamento"

// CompressionAlgo specifies the compression algorithm used for a snapshot.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is one row of sys_audit.
type auditRow struct {
	ID                id.ID               `db:"id"`
	EntityType        string              `db:"entity_type"`
	EntityID          id.ID               `db:"entity_id"`
	Action            closing.AuditAction `db:"action"`
	UserName          string              `db:"user_name"`
	Changes           json.RawMessage     `db:"changes"`
	ChangesCompressed []byte              `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo     `db:"compression_algo"`
	CreatedAt         time.Time           `db:"created_at"`
}

// entry expects an unpacked row.
func (r auditRow) entry() closing.AuditEntry {
	return closing.AuditEntry{
		ID:        r.ID,
		ClosingID: r.EntityID,
		Action:    r.Action,
		Operator:  r.UserName,
		Snapshot:  r.Changes,
		CreatedAt: r.CreatedAt,
	}
}

var _ closing.AuditLog = (*AuditService)(nil)

// AuditService writes closing snapshots to sys_audit. Snapshots above the
// threshold are stored zstd-compressed.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
	now               func() time.Time
}

// NewAuditService creates an audit service. threshold is in bytes; zero or
// negative disables compression.
func NewAuditService(txManager *TxManager, threshold int) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
		now:               time.Now,
	}, nil
}

// Record implements closing.AuditLog. It runs on the caller's transaction.
func (s *AuditService) Record(ctx context.Context, action closing.AuditAction, closingID id.ID, snapshot any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}

	entry := s.pack(auditRow{
		ID:         id.New(),
		EntityType: auditEntityClosing,
		EntityID:   closingID,
		Action:     action,
		UserName:   appctx.GetOperatorName(ctx),
		Changes:    raw,
		CreatedAt:  s.now().UTC(),
	})

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_name,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserName,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the audit trail of a closing, newest first, with
// snapshots decompressed.
func (s *AuditService) History(ctx context.Context, closingID id.ID, limit int) ([]closing.AuditEntry, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, user_name,
			   changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, auditEntityClosing, closingID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	entries := make([]closing.AuditEntry, 0)
	for rows.Next() {
		var e auditRow
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserName,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e, err = s.unpack(e); err != nil {
			return nil, err
		}
		entries = append(entries, e.entry())
	}
	return entries, rows.Err()
}

// pack moves large snapshots into the compressed column.
func (s *AuditService) pack(e auditRow) auditRow {
	e.CompressionAlgo = CompressionNone
	if s.compressThreshold > 0 && len(e.Changes) > s.compressThreshold {
		e.ChangesCompressed = s.encoder.EncodeAll(e.Changes, nil)
		e.Changes = nil
		e.CompressionAlgo = CompressionZstd
	}
	return e
}

func (s *AuditService) unpack(e auditRow) (auditRow, error) {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return e, nil
	}
	plain, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return e, fmt.Errorf("decompress audit entry %s: %w", e.ID, err)
	}
	e.Changes = plain
	e.ChangesCompressed = nil
	return e, nil
}
