package triple

import (
	"math"

	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/varint"
)

// EncodeObject appends the type-tagged encoding of o to w: one byte type tag
// followed by the type's fixed or length-prefixed payload (§4.4's object
// column rule).
func EncodeObject(w *varint.Writer, o ObjectValue) {
	w.WriteRaw([]byte{byte(o.Type)})

	switch o.Type {
	case format.ObjectTypeNull:
		// no payload
	case format.ObjectTypeString:
		w.WriteString(o.Str)
	case format.ObjectTypeRef:
		w.WriteString(o.Str)
	case format.ObjectTypeInt32:
		w.WriteZigZag(int64(o.Int32))
	case format.ObjectTypeInt64:
		w.WriteZigZag(o.Int64)
	case format.ObjectTypeFloat64:
		w.WriteRaw(u64le(math.Float64bits(o.Float64)))
	case format.ObjectTypeBool:
		if o.Bool {
			w.WriteRaw([]byte{1})
		} else {
			w.WriteRaw([]byte{0})
		}
	case format.ObjectTypeTimestamp:
		w.WriteZigZag(o.Timestamp)
	case format.ObjectTypeGeoPoint:
		w.WriteRaw(u64le(math.Float64bits(o.Lat)))
		w.WriteRaw(u64le(math.Float64bits(o.Lng)))
	case format.ObjectTypeBinary:
		w.WriteBytes(o.Binary)
	}
}

// DecodeObject reads one type-tagged object value from r.
func DecodeObject(r *varint.Reader) (ObjectValue, error) {
	tagByte, err := r.ReadRaw(1)
	if err != nil {
		return ObjectValue{}, err
	}
	typ := format.ObjectType(tagByte[0])

	var o ObjectValue
	o.Type = typ

	switch typ {
	case format.ObjectTypeNull:
		// no payload
	case format.ObjectTypeString, format.ObjectTypeRef:
		s, err := r.ReadString()
		if err != nil {
			return ObjectValue{}, err
		}
		o.Str = s
	case format.ObjectTypeInt32:
		v, err := r.ReadZigZag()
		if err != nil {
			return ObjectValue{}, err
		}
		o.Int32 = int32(v)
	case format.ObjectTypeInt64:
		v, err := r.ReadZigZag()
		if err != nil {
			return ObjectValue{}, err
		}
		o.Int64 = v
	case format.ObjectTypeFloat64:
		b, err := r.ReadRaw(8)
		if err != nil {
			return ObjectValue{}, err
		}
		o.Float64 = math.Float64frombits(le64(b))
	case format.ObjectTypeBool:
		b, err := r.ReadRaw(1)
		if err != nil {
			return ObjectValue{}, err
		}
		o.Bool = b[0] != 0
	case format.ObjectTypeTimestamp:
		v, err := r.ReadZigZag()
		if err != nil {
			return ObjectValue{}, err
		}
		o.Timestamp = v
	case format.ObjectTypeGeoPoint:
		latB, err := r.ReadRaw(8)
		if err != nil {
			return ObjectValue{}, err
		}
		lngB, err := r.ReadRaw(8)
		if err != nil {
			return ObjectValue{}, err
		}
		o.Lat = math.Float64frombits(le64(latB))
		o.Lng = math.Float64frombits(le64(lngB))
	case format.ObjectTypeBinary:
		b, err := r.ReadBytes()
		if err != nil {
			return ObjectValue{}, err
		}
		o.Binary = b
	default:
		return ObjectValue{}, errs.ErrBadFormatUnknownObjectType
	}

	return o, nil
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}

	return b
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}

	return v
}
