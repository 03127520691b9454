package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_HOST", "db.internal")

	// 环境变量优先于默认值
	assert.Equal(t, "host: db.internal", expandEnv("host: ${TEST_HOST:localhost}"))

	// 未设置时取默认值
	assert.Equal(t, "port: 5432", expandEnv("port: ${TEST_UNSET_PORT:5432}"))

	// 空默认值
	assert.Equal(t, "password: ", expandEnv("password: ${TEST_UNSET_PASSWORD:}"))

	// 无默认值且未定义时原样保留
	assert.Equal(t, "key: ${TEST_UNDEFINED}", expandEnv("key: ${TEST_UNDEFINED}"))

	// 一行内多个占位符
	t.Setenv("TEST_USER", "app")
	assert.Equal(t, "dsn: app@db.internal", expandEnv("dsn: ${TEST_USER:x}@${TEST_HOST:y}"))
}
