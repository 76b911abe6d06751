package download

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/Dimensional/GalaxyDL/internal/store"
)

// xmlChunk is one <chunk> row in the companion XML sidecar, using the
// "new compact format" the source's _parse_existing_checksum_xml
// recognizes: all three hashes as attributes rather than one hash per
// element with a method attribute.
type xmlChunk struct {
	ID     int    `xml:"id,attr"`
	From   int64  `xml:"from,attr"`
	To     int64  `xml:"to,attr"`
	MD5    string `xml:"md5,attr"`
	SHA1   string `xml:"sha1,attr"`
	SHA256 string `xml:"sha256,attr"`
}

// blobChecksumDocument is the companion XML sidecar's root element,
// emitted after the final block of a blob completes, for interoperability
// with a legacy verifier (spec.md §4.4).
type blobChecksumDocument struct {
	XMLName xml.Name   `xml:"blob"`
	FileName string    `xml:"file_name,attr"`
	MD5      string    `xml:"md5,attr"`
	SHA1     string    `xml:"sha1,attr"`
	SHA256   string    `xml:"sha256,attr"`
	Chunks   []xmlChunk `xml:"chunk"`
}

// writeXMLSidecar renders sc's chunk rows and overall hashes into the
// companion XML document and writes it atomically.
func writeXMLSidecar(s *store.Store, relPath string, sc *Sidecar) error {
	ids := make([]int, 0, len(sc.ChunkHashes))
	for idStr := range sc.ChunkHashes {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	doc := blobChecksumDocument{
		FileName: sc.FileName,
		MD5:      sc.OverallHashes.MD5,
		SHA1:     sc.OverallHashes.SHA1,
		SHA256:   sc.OverallHashes.SHA256,
	}

	for _, id := range ids {
		row := sc.ChunkHashes[strconv.Itoa(id)]
		doc.Chunks = append(doc.Chunks, xmlChunk{
			ID:     id,
			From:   row.From,
			To:     row.To,
			MD5:    row.MD5,
			SHA1:   row.SHA1,
			SHA256: row.SHA256,
		})
	}

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return s.WriteFile(relPath, append([]byte(xml.Header), raw...))
}
