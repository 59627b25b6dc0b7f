package db

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"strconv"
	"strings"
)

// HashString returns the hex SHA-256 of s. Used for page ids, content hashes
// and task ids.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hashKey is a short, stable, non-cryptographic key: FNV-1a in base 36.
func hashKey(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// EntityID derives the id for a newly seen entity from its name and type.
func EntityID(name, entityType string) string {
	return "ent:" + hashKey(strings.ToLower(strings.TrimSpace(name))+"|"+entityType)
}

// NodeKey is the composite "{kind}:{id}" key used by relation indexes.
func NodeKey(kind, id string) string {
	return kind + ":" + id
}

// RelationID is the deterministic id of a (canonical) relation five-tuple.
func RelationID(sourceType, sourceID, relType, targetType, targetID string) string {
	return NodeKey(sourceType, sourceID) + "|" + relType + "|" + NodeKey(targetType, targetID)
}

// IsSymmetric reports whether relType describes an undirected pair.
func IsSymmetric(relType string) bool {
	return relType == RelCoMention || relType == RelPageSimilar
}
