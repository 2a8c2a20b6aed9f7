package store

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/measuredat/nexo/compress"
	"github.com/measuredat/nexo/endian"
	"github.com/measuredat/nexo/errs"
	"github.com/measuredat/nexo/format"
	"github.com/measuredat/nexo/internal/hash"
	"github.com/measuredat/nexo/internal/pool"
)

// Container file layout:
//
//	magic "NEXO" (4) | version (1) | compression (1) | xxHash64 digest (8, LE)
//	| codec-compressed payload
//
// The payload is a YAML document describing the tree. Dataset element data
// is encoded little-endian via the endian engine and rides in the YAML as a
// binary scalar. The digest covers the compressed payload so corruption is
// detected before any decoding work.

const containerVersion = 1

var containerMagic = [4]byte{'N', 'E', 'X', 'O'}

const headerSize = 4 + 1 + 1 + 8

type fileAttr struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

type fileNode struct {
	Name     string     `yaml:"name,omitempty"`
	Kind     string     `yaml:"kind"`
	Attrs    []fileAttr `yaml:"attrs,omitempty"`
	Value    any        `yaml:"value,omitempty"`
	Target   string     `yaml:"target,omitempty"`
	DType    uint8      `yaml:"dtype,omitempty"`
	Shape    []int      `yaml:"shape,omitempty,flow"`
	Chunk    int        `yaml:"chunk,omitempty"`
	Width    int        `yaml:"width,omitempty"`
	Data     []byte     `yaml:"data,omitempty"`
	Virtual  bool       `yaml:"virtual,omitempty"`
	Children []fileNode `yaml:"children,omitempty"`
}

const (
	kindGroup    = "group"
	kindDataset  = "dataset"
	kindLeaf     = "leaf"
	kindSoftLink = "softlink"
)

func attrsToFile(attrs *attrSet) []fileAttr {
	keys := attrs.keys()
	if len(keys) == 0 {
		return nil
	}

	out := make([]fileAttr, 0, len(keys))
	for _, k := range keys {
		v, _ := attrs.get(k)
		out = append(out, fileAttr{Key: k, Value: v})
	}

	return out
}

func groupToFile(g *Group) fileNode {
	node := fileNode{
		Name:  g.name,
		Kind:  kindGroup,
		Attrs: attrsToFile(g.attrs),
	}

	for _, name := range g.order {
		child := g.children[name]
		switch c := child.(type) {
		case *Group:
			node.Children = append(node.Children, groupToFile(c))
		case *Dataset:
			node.Children = append(node.Children, datasetToFile(c.name, c.arr, c.chunk, c.attrs, false))
		case *VirtualDataset:
			// Views are materialized at flush time; the file carries the
			// gathered rows plus a marker that they came from a view.
			node.Children = append(node.Children, datasetToFile(c.name, c.Materialize(), 1, c.attrs, true))
		case *Leaf:
			node.Children = append(node.Children, fileNode{
				Name:  c.name,
				Kind:  kindLeaf,
				Value: c.value,
			})
		case *SoftLink:
			node.Children = append(node.Children, fileNode{
				Name:   c.name,
				Kind:   kindSoftLink,
				Target: c.target,
			})
		}
	}

	return node
}

func datasetToFile(name string, arr Array, chunk int, attrs *attrSet, virtual bool) fileNode {
	width := arr.Width
	if arr.DType == format.DTypeBytes {
		for _, s := range arr.Strings {
			if len(s) > width {
				width = len(s)
			}
		}
	}

	return fileNode{
		Name:    name,
		Kind:    kindDataset,
		Attrs:   attrsToFile(attrs),
		DType:   uint8(arr.DType),
		Shape:   arr.Shape,
		Chunk:   chunk,
		Width:   width,
		Data:    encodePayload(arr, width),
		Virtual: virtual,
	}
}

func encodePayload(arr Array, width int) []byte {
	engine := endian.GetLittleEndianEngine()

	switch arr.DType {
	case format.DTypeFloat64:
		buf := make([]byte, 0, 8*len(arr.Float64s))
		for _, v := range arr.Float64s {
			buf = engine.AppendUint64(buf, math.Float64bits(v))
		}

		return buf
	case format.DTypeInt64:
		buf := make([]byte, 0, 8*len(arr.Int64s))
		for _, v := range arr.Int64s {
			buf = engine.AppendUint64(buf, uint64(v))
		}

		return buf
	case format.DTypeBool:
		buf := make([]byte, len(arr.Bools))
		for i, v := range arr.Bools {
			if v {
				buf[i] = 1
			}
		}

		return buf
	case format.DTypeBytes:
		scratch := pool.GetScratchBuffer()
		defer pool.PutScratchBuffer(scratch)

		buf := make([]byte, 0, width*len(arr.Strings))
		for _, s := range arr.Strings {
			padded := scratch.Zeroed(width)
			copy(padded, s)
			buf = append(buf, padded...)
		}

		return buf
	default:
		return nil
	}
}

func decodePayload(node fileNode) (Array, error) {
	engine := endian.GetLittleEndianEngine()
	arr := Array{
		DType: format.DType(node.DType),
		Shape: node.Shape,
		Width: node.Width,
	}

	count := 1
	for _, dim := range node.Shape {
		count *= dim
	}

	switch arr.DType {
	case format.DTypeFloat64:
		if len(node.Data) != 8*count {
			return Array{}, fmt.Errorf("float64 payload of %d bytes for %d elements", len(node.Data), count)
		}
		arr.Float64s = make([]float64, count)
		for i := range count {
			arr.Float64s[i] = math.Float64frombits(engine.Uint64(node.Data[8*i:]))
		}
	case format.DTypeInt64:
		if len(node.Data) != 8*count {
			return Array{}, fmt.Errorf("int64 payload of %d bytes for %d elements", len(node.Data), count)
		}
		arr.Int64s = make([]int64, count)
		for i := range count {
			arr.Int64s[i] = int64(engine.Uint64(node.Data[8*i:]))
		}
	case format.DTypeBool:
		if len(node.Data) != count {
			return Array{}, fmt.Errorf("bool payload of %d bytes for %d elements", len(node.Data), count)
		}
		arr.Bools = make([]bool, count)
		for i := range count {
			arr.Bools[i] = node.Data[i] != 0
		}
	case format.DTypeBytes:
		if node.Width < 0 || len(node.Data) != node.Width*count {
			return Array{}, fmt.Errorf("bytes payload of %d bytes for %d elements of width %d",
				len(node.Data), count, node.Width)
		}
		arr.Strings = make([]string, count)
		for i := range count {
			if node.Width == 0 {
				continue
			}
			raw := node.Data[i*node.Width : (i+1)*node.Width]
			arr.Strings[i] = strings.TrimRight(string(raw), "\x00")
		}
	default:
		return Array{}, fmt.Errorf("unknown dtype %d", node.DType)
	}

	return arr, nil
}

func fileToGroup(node fileNode, parent *Group) (*Group, error) {
	g := newGroup(node.Name, parent)
	for _, a := range node.Attrs {
		g.attrs.set(a.Key, a.Value)
	}

	for _, child := range node.Children {
		switch child.Kind {
		case kindGroup:
			sub, err := fileToGroup(child, g)
			if err != nil {
				return nil, err
			}
			if err := g.addChild(child.Name, sub); err != nil {
				return nil, err
			}
		case kindDataset:
			arr, err := decodePayload(child)
			if err != nil {
				return nil, fmt.Errorf("dataset %q: %w", child.Name, err)
			}
			ds := &Dataset{
				name:   child.Name,
				parent: g,
				arr:    arr,
				chunk:  max(child.Chunk, 1),
				attrs:  newAttrSet(),
			}
			for _, a := range child.Attrs {
				ds.attrs.set(a.Key, a.Value)
			}
			if err := g.addChild(child.Name, ds); err != nil {
				return nil, err
			}
		case kindLeaf:
			leaf := &Leaf{name: child.Name, value: child.Value}
			if err := g.addChild(child.Name, leaf); err != nil {
				return nil, err
			}
		case kindSoftLink:
			link := &SoftLink{name: child.Name, target: child.Target}
			if err := g.addChild(child.Name, link); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown node kind %q", child.Kind)
		}
	}

	return g, nil
}

func encodeContainer(root *Group, compression format.CompressionType) ([]byte, error) {
	payload, err := yaml.Marshal(groupToFile(root))
	if err != nil {
		return nil, err
	}

	codec, err := compress.GetCodec(compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCompression, compression)
	}
	body, err := codec.Compress(payload)
	if err != nil {
		return nil, err
	}

	engine := endian.GetLittleEndianEngine()
	out := make([]byte, 0, headerSize+len(body))
	out = append(out, containerMagic[:]...)
	out = append(out, containerVersion, byte(compression))
	out = engine.AppendUint64(out, hash.Sum(body))
	out = append(out, body...)

	return out, nil
}

func decodeContainer(data []byte) (*Group, format.CompressionType, error) {
	if len(data) < headerSize {
		return nil, 0, fmt.Errorf("%w: %d bytes", errs.ErrInvalidMagicNumber, len(data))
	}
	if [4]byte(data[:4]) != containerMagic {
		return nil, 0, errs.ErrInvalidMagicNumber
	}
	if data[4] != containerVersion {
		return nil, 0, fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, data[4])
	}

	compression := format.CompressionType(data[5])
	codec, err := compress.GetCodec(compression)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %d", errs.ErrInvalidCompression, data[5])
	}

	engine := endian.GetLittleEndianEngine()
	body := data[headerSize:]
	if engine.Uint64(data[6:14]) != hash.Sum(body) {
		return nil, 0, errs.ErrChecksumMismatch
	}

	payload, err := codec.Decompress(body)
	if err != nil {
		return nil, 0, err
	}

	var node fileNode
	if err := yaml.Unmarshal(payload, &node); err != nil {
		return nil, 0, err
	}

	root, err := fileToGroup(node, nil)
	if err != nil {
		return nil, 0, err
	}

	return root, compression, nil
}
