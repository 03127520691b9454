// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionEvents 活动向量集合
	CollectionEvents = "events"
)

// EventsSchema 活动 Collection Schema
// 标量字段冗余存储一份，用于检索时的前置硬过滤。
func EventsSchema(dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionEvents,
		Description:    "Event embeddings for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dimension),
				},
			},
			{
				Name:     "category",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "price_cents",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "is_free",
				DataType: entity.FieldTypeBool,
			},
			{
				// Unix 秒；0 表示开始时间未知
				Name:     "start_time",
				DataType: entity.FieldTypeInt64,
			},
			{
				// 小写存储，过滤时同样小写，实现大小写无关匹配
				Name:     "city",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "100",
				},
			},
		},
	}
}

// EventVector 活动向量数据结构
type EventVector struct {
	ID         string    `json:"id"`
	Vector     []float32 `json:"vector"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	IsFree     bool      `json:"is_free"`
	StartTime  int64     `json:"start_time"`
	City       string    `json:"city"`
}
