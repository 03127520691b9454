// Package entity 定义领域实体
package entity

import (
	"database/sql/driver"
	"encoding/json"
)

// StringSlice 用于 GORM JSONB 序列化的字符串切片
type StringSlice []string

// Value 实现 driver.Valuer 接口
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}

// Vector 用于 GORM JSONB 序列化的 float32 向量
type Vector []float32

// Value 实现 driver.Valuer 接口
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner 接口
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), v)
}
