// Package dedup 实现两阶段的重复检测：
//
//   - FindExact：按 SHA-256 内容摘要聚合完全一致的文件（并发 worker 池 + 单一聚合 goroutine）
//   - FindSimilar：按 64 bit 感知指纹对图片做贪心 single-link 聚类（顺序相关、可复现）
//
// 两个阶段相互独立、可组合：通常把 Ungrouped(records, exact.Groups) 的结果交给 FindSimilar。
package dedup
