package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// バリアント属性やカートのメタデータ。
// 値はスカラー（string / number / bool）のみ。在庫・カート・チェックアウトのロジックは中身を見ない。
type Attributes map[string]any

// スカラー以外の値を落としたコピーを返す。
func (a Attributes) Scalars() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		switch t := v.(type) {
		case string, bool, float64, float32, int, int32, int64, json.Number:
			out[k] = t
		}
	}
	return out
}

// JSONカラム
type AttributesJSON = datatypes.JSONType[Attributes]

func NewAttributesJSON(a Attributes) AttributesJSON {
	if a == nil {
		a = Attributes{}
	}
	return datatypes.NewJSONType(a.Scalars())
}
