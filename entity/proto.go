package entity

import (
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// structpb 只有 float64 数值类型，int64 和时间使用带标记的对象保存，避免精度丢失
const (
	intTag    = "@int"
	timeTag   = "@time"
	entityTag = "@entity"
)

// ToProto 将实体编码为 protobuf Struct
func (e *Entity) ToProto() (*structpb.Struct, error) {
	fields := make(map[string]*structpb.Value, len(e.fields))
	for k, v := range e.fields {
		pv, err := toProtoValue(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q", k)
		}
		fields[k] = pv
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      structpb.NewStringValue(strconv.FormatInt(e.id, 10)),
		"deleted": structpb.NewBoolValue(e.deleted),
		"fields":  structpb.NewStructValue(&structpb.Struct{Fields: fields}),
	}}, nil
}

// FromProto 从 protobuf Struct 解码实体
func FromProto(s *structpb.Struct) (*Entity, error) {
	if s == nil {
		return nil, errors.New("struct is nil")
	}

	id, err := strconv.ParseInt(s.GetFields()["id"].GetStringValue(), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse id failed")
	}

	e := NewWithID(id)
	e.deleted = s.GetFields()["deleted"].GetBoolValue()
	for k, pv := range s.GetFields()["fields"].GetStructValue().GetFields() {
		v, err := fromProtoValue(pv)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q", k)
		}
		e.fields[k] = v
	}
	return e, nil
}

// MarshalJSON 输出 ToProto 的 JSON 形式，int64 和时间保留类型标记
func (e *Entity) MarshalJSON() ([]byte, error) {
	pb, err := e.ToProto()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(pb)
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var pb structpb.Struct
	if err := protojson.Unmarshal(data, &pb); err != nil {
		return errors.Wrap(err, "protojson.Unmarshal failed")
	}
	decoded, err := FromProto(&pb)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

func tagged(tag string, v *structpb.Value) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{tag: v}})
}

func toProtoValue(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case *Entity:
		if x == nil {
			return structpb.NewNullValue(), nil
		}
		s, err := x.ToProto()
		if err != nil {
			return nil, err
		}
		return tagged(entityTag, structpb.NewStructValue(s)), nil
	case time.Time:
		return tagged(timeTag, structpb.NewStringValue(x.Format(time.RFC3339Nano))), nil
	case string:
		return structpb.NewStringValue(x), nil
	case bool:
		return structpb.NewBoolValue(x), nil
	case float32:
		return structpb.NewNumberValue(float64(x)), nil
	case float64:
		return structpb.NewNumberValue(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return tagged(intTag, structpb.NewStringValue(strconv.FormatInt(rv.Int(), 10))), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return tagged(intTag, structpb.NewStringValue(strconv.FormatUint(rv.Uint(), 10))), nil
	case reflect.Slice, reflect.Array:
		values := make([]*structpb.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			pv, err := toProtoValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			values[i] = pv
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return structpb.NewNullValue(), nil
		}
		return toProtoValue(rv.Elem().Interface())
	}

	return nil, errors.Errorf("unsupported value type %T", v)
}

func fromProtoValue(pv *structpb.Value) (any, error) {
	switch k := pv.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_ListValue:
		values := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			v, err := fromProtoValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	case *structpb.Value_StructValue:
		fields := k.StructValue.GetFields()
		if v, ok := fields[intTag]; ok {
			return strconv.ParseInt(v.GetStringValue(), 10, 64)
		}
		if v, ok := fields[timeTag]; ok {
			return time.Parse(time.RFC3339Nano, v.GetStringValue())
		}
		if v, ok := fields[entityTag]; ok {
			return FromProto(v.GetStructValue())
		}
		return k.StructValue.AsMap(), nil
	}
	return nil, errors.Errorf("unsupported proto value %v", pv)
}
