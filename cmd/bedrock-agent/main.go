// Command bedrock-agent 在 Amazon Bedrock 上运行带 Langfuse 追踪的智能体
//
// 子命令覆盖对话、工具调用、Guardrail 过滤、prompt cache 指标与离线评估。
package main

func main() {
	Execute()
}
