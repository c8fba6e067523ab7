package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ToJSON 把任意值编码为 jsonb 列，编码失败时返回 null
func ToJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

// FromJSON 解析 jsonb 列，空列视为零值
func FromJSON(raw datatypes.JSON, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
