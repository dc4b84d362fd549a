package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/go-gbdt/gbdt/internal/binning"
	gbdterrors "github.com/go-gbdt/gbdt/pkg/errors"
)

// Binary dataset format (little-endian, §6):
//
//	u64 size_of_header
//	i32 num_data; i32 num_class; i32 num_features; i32 num_total_features
//	u64 num_used_feature_map; i32 used_feature_map[num_used_feature_map]
//	for i in 0..num_total_features: i32 name_len; u8 name[name_len]
//	u64 size_of_metadata; <metadata blob>
//	for i in 0..num_features: u64 size_of_feature; <feature blob>
//
// Metadata blob: i32 num_data, num_weights, num_queries;
//   f32 label[num_data]; f32 weight[num_weights]?; i32 query_boundaries[num_queries+1]?
//
// Feature blob: i32 feature_index, num_bin; f64 bin_upper_bound[num_bin];
//   u8 encoding_tag; <dense|sparse payload>
//
// Dense payload:  u8 width_tag (0=byte,1=u16); i32 num_data; bin[num_data]
// Sparse payload: i32 default_bin; i32 num_entries; (i32 row; u8 bin)[num_entries]

const (
	encodingDense  uint8 = 0
	encodingSparse uint8 = 1
)

// SaveBinary writes the dataset to path in the format above.
func (d *Dataset) SaveBinary(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return gbdterrors.NewIOError("Dataset.SaveBinary", path, err)
	}
	defer func() { _ = f.Close() }()
	w := bufio.NewWriter(f)
	if err := d.WriteBinary(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return gbdterrors.NewIOError("Dataset.SaveBinary", path, err)
	}
	return nil
}

// WriteBinary serialises the dataset to w.
func (d *Dataset) WriteBinary(w io.Writer) error {
	var header bytes.Buffer
	writeI32(&header, int32(d.NumData))
	writeI32(&header, int32(1)) // num_class: boosting tracks class count separately; the blob is class-agnostic
	writeI32(&header, int32(len(d.Features)))
	writeI32(&header, int32(d.NumTotalFeatures))
	writeU64(&header, uint64(len(d.UsedFeatureMap)))
	for _, v := range d.UsedFeatureMap {
		writeI32(&header, int32(v))
	}
	names := make([]string, d.NumTotalFeatures)
	for i := range d.UsedFeatureMap {
		if local := d.UsedFeatureMap[i]; local >= 0 {
			names[i] = d.Features[local].Name
		}
	}
	for _, name := range names {
		writeI32(&header, int32(len(name)))
		header.WriteString(name)
	}
	if err := writeChunk(w, header.Bytes()); err != nil {
		return err
	}

	var meta bytes.Buffer
	writeMetadata(&meta, d.Meta)
	if err := writeChunk(w, meta.Bytes()); err != nil {
		return err
	}

	for i, feat := range d.Features {
		var fb bytes.Buffer
		writeFeature(&fb, i, feat)
		if err := writeChunk(w, fb.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeChunk(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return gbdterrors.NewIOError("Dataset.WriteBinary", "", err)
	}
	if _, err := w.Write(payload); err != nil {
		return gbdterrors.NewIOError("Dataset.WriteBinary", "", err)
	}
	return nil
}

func writeMetadata(buf *bytes.Buffer, m *Metadata) {
	numData := len(m.label)
	numWeights := len(m.weight)
	numQueries := m.NumQueries()
	writeI32(buf, int32(numData))
	writeI32(buf, int32(numWeights))
	writeI32(buf, int32(numQueries))
	for _, v := range m.label {
		writeF32(buf, float32(v))
	}
	for _, v := range m.weight {
		writeF32(buf, float32(v))
	}
	for _, v := range m.queryBoundaries {
		writeI32(buf, v)
	}
}

func writeFeature(buf *bytes.Buffer, index int, feat *Feature) {
	writeI32(buf, int32(index))
	writeI32(buf, int32(feat.Mapper.NumBin()))
	for _, b := range feat.Mapper.UpperBound {
		writeF64(buf, b)
	}
	switch bin := feat.Bin.(type) {
	case *binning.DenseBin:
		buf.WriteByte(encodingDense)
		n := bin.NumData()
		wide := bin.NumBin() > 256
		if wide {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeI32(buf, int32(n))
		for i := 0; i < n; i++ {
			if wide {
				var tmp [2]byte
				binary.LittleEndian.PutUint16(tmp[:], uint16(bin.BinAt(i)))
				buf.Write(tmp[:])
			} else {
				buf.WriteByte(byte(bin.BinAt(i)))
			}
		}
	case *binning.SparseBin:
		buf.WriteByte(encodingSparse)
		writeI32(buf, int32(bin.DefaultBin()))
		rows, bins := bin.Entries()
		writeI32(buf, int32(len(rows)))
		for i, r := range rows {
			writeI32(buf, int32(r))
			buf.WriteByte(byte(bins[i]))
		}
	}
}

func writeI32(buf *bytes.Buffer, v int32)   { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64)  { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeF32(buf *bytes.Buffer, v float32) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeF64(buf *bytes.Buffer, v float64) { _ = binary.Write(buf, binary.LittleEndian, v) }

// LoadBinary reads a dataset back from path, reconstructing bin
// boundaries, features and query boundaries exactly (§8 property 2:
// binary round-trip). Label and weight are stored as float32, so they
// come back rounded to float32 precision.
func LoadBinary(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gbdterrors.NewIOError("dataset.LoadBinary", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadBinary(bufio.NewReader(f))
}

// ReadBinary reads a dataset from r.
func ReadBinary(r io.Reader) (*Dataset, error) {
	headerBytes, err := readChunk(r)
	if err != nil {
		return nil, err
	}
	hr := bytes.NewReader(headerBytes)
	numData := int(readI32(hr))
	_ = readI32(hr) // num_class, tracked at the boosting layer
	numFeatures := int(readI32(hr))
	numTotalFeatures := int(readI32(hr))
	numUsed := int(readU64(hr))
	usedFeatureMap := make([]int, numUsed)
	for i := range usedFeatureMap {
		usedFeatureMap[i] = int(readI32(hr))
	}
	names := make([]string, numTotalFeatures)
	for i := range names {
		l := int(readI32(hr))
		buf := make([]byte, l)
		_, _ = io.ReadFull(hr, buf)
		names[i] = string(buf)
	}

	metaBytes, err := readChunk(r)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(metaBytes, numData)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		NumData:          numData,
		NumTotalFeatures: numTotalFeatures,
		UsedFeatureMap:   usedFeatureMap,
		Meta:             meta,
		Features:         make([]*Feature, numFeatures),
	}
	for i := 0; i < numFeatures; i++ {
		fb, err := readChunk(r)
		if err != nil {
			return nil, err
		}
		feat, err := readFeature(fb, names, usedFeatureMap)
		if err != nil {
			return nil, err
		}
		ds.Features[i] = feat
	}
	return ds, nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, gbdterrors.NewModelParseError("dataset.ReadBinary", "truncated chunk size: "+err.Error(), 0)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, gbdterrors.NewModelParseError("dataset.ReadBinary", "truncated chunk: "+err.Error(), 0)
	}
	return buf, nil
}

func readI32(r io.Reader) int32 {
	var v int32
	_ = binary.Read(r, binary.LittleEndian, &v)
	return v
}

func readU64(r io.Reader) uint64 {
	var v uint64
	_ = binary.Read(r, binary.LittleEndian, &v)
	return v
}

func readF32(r io.Reader) float32 {
	var v float32
	_ = binary.Read(r, binary.LittleEndian, &v)
	return v
}

func readF64(r io.Reader) float64 {
	var v float64
	_ = binary.Read(r, binary.LittleEndian, &v)
	return v
}

func readMetadata(buf []byte, numData int) (*Metadata, error) {
	r := bytes.NewReader(buf)
	n := int(readI32(r))
	numWeights := int(readI32(r))
	numQueries := int(readI32(r))
	m := NewMetadata(numData)
	label := make([]float64, n)
	for i := range label {
		label[i] = float64(readF32(r))
	}
	m.label = label
	if numWeights > 0 {
		weight := make([]float64, numWeights)
		for i := range weight {
			weight[i] = float64(readF32(r))
		}
		m.weight = weight
	}
	if numQueries > 0 {
		qb := make([]int32, numQueries+1)
		for i := range qb {
			qb[i] = readI32(r)
		}
		m.queryBoundaries = qb
	}
	return m, nil
}

func readFeature(buf []byte, names []string, usedFeatureMap []int) (*Feature, error) {
	r := bytes.NewReader(buf)
	index := int(readI32(r))
	numBin := int(readI32(r))
	upper := make([]float64, numBin)
	for i := range upper {
		upper[i] = readF64(r)
	}
	tagByte := make([]byte, 1)
	if _, err := io.ReadFull(r, tagByte); err != nil {
		return nil, gbdterrors.NewModelParseError("dataset.readFeature", "missing encoding tag", 0)
	}
	mapper := &binning.BinMapper{UpperBound: upper}
	mapper.DefaultBin = mapper.ValueToBin(0)

	name := ""
	if index >= 0 && index < len(names) {
		name = names[index]
	}
	feat := &Feature{Name: name, Mapper: mapper}

	switch tagByte[0] {
	case encodingDense:
		widthByte := make([]byte, 1)
		_, _ = io.ReadFull(r, widthByte)
		wide := widthByte[0] == 1
		n := int(readI32(r))
		db := binning.NewDenseBin(n, numBin)
		if wide {
			for i := 0; i < n; i++ {
				var tmp [2]byte
				_, _ = io.ReadFull(r, tmp[:])
				db.Push(i, uint32(binary.LittleEndian.Uint16(tmp[:])))
			}
		} else {
			bin := make([]byte, n)
			_, _ = io.ReadFull(r, bin)
			for i, b := range bin {
				db.Push(i, uint32(b))
			}
		}
		db.FinishLoad()
		feat.Bin = db
	case encodingSparse:
		defaultBin := uint32(readI32(r))
		numEntries := int(readI32(r))
		rows := make([]int, numEntries)
		bins := make([]uint32, numEntries)
		maxRow := 0
		for i := 0; i < numEntries; i++ {
			rows[i] = int(readI32(r))
			b := make([]byte, 1)
			_, _ = io.ReadFull(r, b)
			bins[i] = uint32(b[0])
			if rows[i] > maxRow {
				maxRow = rows[i]
			}
		}
		sb := binning.NewSparseBin(maxRow+1, numBin, defaultBin)
		sb.LoadEntries(rows, bins)
		feat.Bin = sb
	default:
		return nil, gbdterrors.NewModelParseError("dataset.readFeature", "unknown encoding tag", 0)
	}
	return feat, nil
}
