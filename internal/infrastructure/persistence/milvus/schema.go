package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionDocChunks 文档切块集合，细粒度证据
	CollectionDocChunks = "doc_chunks"
	// CollectionDocSummaries 文档摘要集合，粗粒度证据
	CollectionDocSummaries = "doc_summaries"
)

// passageSchema 两个集合共用的字段布局，只有集合名和描述不同
func passageSchema(collection, description string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    description,
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
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "doc_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "doc_title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "bucket",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// DocChunksSchema 文档切块 Collection Schema
func DocChunksSchema(dim int) *entity.Schema {
	return passageSchema(CollectionDocChunks, "Document chunks for fine-grained semantic search", dim)
}

// DocSummariesSchema 文档摘要 Collection Schema
func DocSummariesSchema(dim int) *entity.Schema {
	return passageSchema(CollectionDocSummaries, "Document level summaries for coarse semantic search", dim)
}

// expectedSchema 按集合名取期望 Schema，未知集合返回 nil
func expectedSchema(name string, dim int) *entity.Schema {
	switch name {
	case CollectionDocChunks:
		return DocChunksSchema(dim)
	case CollectionDocSummaries:
		return DocSummariesSchema(dim)
	default:
		return nil
	}
}

// vectorDim 取 Schema 中向量字段的维度，无向量字段返回 0
func vectorDim(s *entity.Schema) int {
	if s == nil {
		return 0
	}
	for _, f := range s.Fields {
		if f.DataType == entity.FieldTypeFloatVector {
			dim, _ := strconv.Atoi(f.TypeParams["dim"])
			return dim
		}
	}
	return 0
}
