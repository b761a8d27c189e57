package store

import (
	"errors"
	"strings"
)

// Key layout. Every collection lives under its own namespace so scans never
// cross collections:
//
//	c/<collection>/<key>                      record
//	i/<collection>/<index>/<value>\x00<key>   secondary index entry
//	m/<name>                                  store metadata
const (
	recordNS = "c/"
	indexNS  = "i/"
	metaNS   = "m/"

	indexSep = "\x00"
)

var errReadOnly = errors.New("write in read-only transaction")

func recordPrefix(c Collection) []byte {
	return []byte(recordNS + string(c) + "/")
}

func recordKey(c Collection, key string) []byte {
	buf := make([]byte, 0, len(recordNS)+len(c)+1+len(key))
	buf = append(buf, recordNS...)
	buf = append(buf, string(c)...)
	buf = append(buf, '/')
	buf = append(buf, key...)
	return buf
}

func indexPrefix(c Collection, index, value string) []byte {
	return []byte(indexNS + string(c) + "/" + index + "/" + normalizeIndexValue(value) + indexSep)
}

func indexKey(c Collection, index, value, key string) []byte {
	return append(indexPrefix(c, index, value), key...)
}

func indexCollectionPrefix(c Collection, index string) []byte {
	return []byte(indexNS + string(c) + "/" + index + "/")
}

func metaKey(name string) []byte {
	return []byte(metaNS + name)
}

func flagKey(name string) []byte {
	return metaKey("flag/" + name)
}

// normalizeIndexValue makes index lookups case-insensitive and keeps the
// separator out of values.
func normalizeIndexValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.ReplaceAll(v, indexSep, "")
}

// validKey reports whether key can be stored: non-blank and free of control
// characters, which would break the key layout.
func validKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
