// Package evaluation 用评判模型评估 Agent 的回答质量
//
// Runner 对数据集中的每个用例运行 Agent，在 Trace 中记录执行过程，
// 再由 Judge 按各项 Metric 打分，分数写回 Trace 并汇总为报告。
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easyops/bedrock-agent-go/pkg/core/errors"
)

// TestCase 数据集中的一个用例
type TestCase struct {
	// Input 发送给 Agent 的问题
	Input string `json:"input" yaml:"input"`
	// ExpectedOutput 期望回答
	ExpectedOutput string `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`
	// Context 事实依据（Hallucination、Tool Usage 使用）
	Context []string `json:"context,omitempty" yaml:"context,omitempty"`
	// RetrievalContext 检索得到的上下文（Faithfulness、ContextualRelevancy 使用）
	RetrievalContext []string `json:"retrieval_context,omitempty" yaml:"retrieval_context,omitempty"`
}

// Dataset 评估数据集
type Dataset struct {
	TestCases []TestCase `json:"test_cases" yaml:"test_cases"`
}

// LoadDataset 读取数据集，按扩展名选择 YAML 或 JSON
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ds)
	default:
		err = json.Unmarshal(data, &ds)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ds, nil
}

// Validate 检查数据集非空且每个用例都有输入
func (d *Dataset) Validate() error {
	if len(d.TestCases) == 0 {
		return errors.ErrEmptyDataset
	}
	for i, tc := range d.TestCases {
		if strings.TrimSpace(tc.Input) == "" {
			return fmt.Errorf("test case %d: input is required", i+1)
		}
	}
	return nil
}
