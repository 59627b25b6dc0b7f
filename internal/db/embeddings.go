package db

import (
	"context"
	"encoding/binary"
	"math"
)

// bytesToEmbedding converts a little-endian byte slice to []float32.
// Each 4 bytes = one LE float32. Short trailing chunk → 0.0.
func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	if len(data)%4 != 0 {
		n++ // include partial chunk as 0.0
	}
	result := make([]float32, n)
	for i := 0; i < len(data)/4; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		result[i] = math.Float32frombits(bits)
	}
	return result
}

// embeddingToBytes is the inverse of bytesToEmbedding.
func embeddingToBytes(v []float32) []byte {
	data := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

// GetPageEmbedding returns the embedding for a single page, or nil if not set.
func (d *DB) GetPageEmbedding(ctx context.Context, id string) ([]float32, error) {
	var data []byte
	err := d.conn.QueryRowContext(ctx, "SELECT embedding FROM pages WHERE id = ?", id).Scan(&data)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return bytesToEmbedding(data), nil
}

// GetPagesWithEmbeddings returns all (id, embedding) pairs for pages that have embeddings.
func (d *DB) GetPagesWithEmbeddings(ctx context.Context) ([]PageEmbedding, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT id, embedding FROM pages WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PageEmbedding
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		result = append(result, PageEmbedding{
			ID:        id,
			Embedding: bytesToEmbedding(data),
		})
	}
	return result, rows.Err()
}

// CountPagesWithEmbeddings returns the count of pages with non-null embeddings.
func (d *DB) CountPagesWithEmbeddings(ctx context.Context) (int, error) {
	var count int
	err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE embedding IS NOT NULL").Scan(&count)
	return count, err
}
