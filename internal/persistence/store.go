package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Visual-Illusions/NewU/internal/model"
	"github.com/Visual-Illusions/NewU/internal/station"
)

// FileName is the station file inside the data directory.
const FileName = "stations.json"

const (
	keyStations       = "Stations"
	keyLegacyStation  = "Station"
	placeholderPrefix = "legacy-"
)

// fileRecord is the on-disk shape of one station.
type fileRecord struct {
	Name        string       `json:"Name,omitempty"`
	Location    fileLocation `json:"Location"`
	Discoverers []string     `json:"Discoverers"`
}

// fileLocation holds block coordinates. Floats are accepted on read because
// older files stored two decimals.
type fileLocation struct {
	World     string  `json:"World"`
	Dimension string  `json:"Dimension"`
	X         float64 `json:"X"`
	Y         float64 `json:"Y"`
	Z         float64 `json:"Z"`
}

type fileDocument struct {
	Stations []fileRecord `json:"Stations"`
}

// FileStore keeps the station set in a single JSON file and replaces it
// atomically on every save.
type FileStore struct {
	path string
}

// NewFileStore returns a store for dir/stations.json. The directory must exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName)}
}

// Path returns the committed file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes records to a temporary file, syncs and closes it, then renames
// it over the committed file. The committed file is never partially written.
func (s *FileStore) Save(records []station.Record) error {
	doc := fileDocument{Stations: make([]fileRecord, 0, len(records))}
	for _, rec := range records {
		doc.Stations = append(doc.Stations, toFileRecord(rec))
	}
	return writeJSONAtomic(s.path, doc)
}

// Load reads the committed file. A missing file yields no records and an
// empty placeholder file. A malformed file yields the records decoded before
// the error together with the error.
func (s *FileStore) Load() ([]station.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := writeJSONAtomic(s.path, fileDocument{Stations: []fileRecord{}}); err != nil {
				slog.Warn("failed to create empty station file", "path", s.path, "error", err)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := Decode(bufio.NewReader(f))
	if err != nil {
		return records, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return records, nil
}

// Decode reads a station document. Both the current {"Stations":[...]} shape
// and the legacy shape with one "Station" key per record are accepted.
// Unknown keys are skipped. On error the records decoded so far are returned.
func Decode(r io.Reader) ([]station.Record, error) {
	dec := json.NewDecoder(r)
	var records []station.Record

	if err := expectDelim(dec, '{'); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil // empty file
		}
		return nil, err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return records, err
		}
		key, _ := tok.(string)

		switch key {
		case keyStations:
			if err := expectDelim(dec, '['); err != nil {
				return records, err
			}
			for dec.More() {
				var fr fileRecord
				if err := dec.Decode(&fr); err != nil {
					return records, fmt.Errorf("station %d: %w", len(records), err)
				}
				records = append(records, fromFileRecord(fr))
			}
			if err := expectDelim(dec, ']'); err != nil {
				return records, err
			}
		case keyLegacyStation:
			var fr fileRecord
			if err := dec.Decode(&fr); err != nil {
				return records, fmt.Errorf("station %d: %w", len(records), err)
			}
			records = append(records, fromFileRecord(fr))
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return records, err
			}
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return records, err
	}
	return records, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func toFileRecord(rec station.Record) fileRecord {
	discoverers := rec.Discoverers
	if discoverers == nil {
		discoverers = []string{}
	}
	return fileRecord{
		Name: rec.Name,
		Location: fileLocation{
			World:     rec.World,
			Dimension: string(rec.Dimension),
			X:         float64(rec.X),
			Y:         float64(rec.Y),
			Z:         float64(rec.Z),
		},
		Discoverers: discoverers,
	}
}

func fromFileRecord(fr fileRecord) station.Record {
	name := fr.Name
	if name == "" {
		name = placeholderPrefix + station.GenerateName()
	}
	pose := model.Pose{X: fr.Location.X, Y: fr.Location.Y, Z: fr.Location.Z}
	return station.Record{
		Name:        name,
		World:       fr.Location.World,
		Dimension:   model.ParseDimension(fr.Location.Dimension),
		X:           pose.BlockX(),
		Y:           pose.BlockY(),
		Z:           pose.BlockZ(),
		Discoverers: fr.Discoverers,
	}
}

// writeJSONAtomic encodes v into path via a sibling temp file and a rename.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	return writeFileAtomic(path, append(b, '\n'))
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}
