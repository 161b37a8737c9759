package domain

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"
)

// ExactFingerprint 是文件内容的 SHA-256 摘要（256 bit）。
// 两条记录摘要相等即视为字节完全一致。
type ExactFingerprint [32]byte

func (f ExactFingerprint) String() string { return hex.EncodeToString(f[:]) }

func (f ExactFingerprint) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *ExactFingerprint) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != len(f) {
		return fmt.Errorf("exact fingerprint 长度无效：%d", len(b))
	}
	_, err := hex.Decode(f[:], b)
	return err
}

// PerceptualFingerprint 是 64 bit 的图片感知指纹（average hash）。
//
// 注意：全 0 是合法指纹，不能兼作“无指纹”哨兵；“无指纹”由调用方以
// ok=false / ErrNoFingerprint 单独表达。
type PerceptualFingerprint uint64

func (f PerceptualFingerprint) String() string { return fmt.Sprintf("%016x", uint64(f)) }

func (f PerceptualFingerprint) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *PerceptualFingerprint) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return fmt.Errorf("perceptual fingerprint 无效：%q", b)
	}
	*f = PerceptualFingerprint(v)
	return nil
}

// HammingDistance 返回两个指纹不同 bit 的个数，范围 [0,64]。
func HammingDistance(a, b PerceptualFingerprint) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}

// Similar 判断两个指纹的汉明距离是否不超过 threshold。
func Similar(a, b PerceptualFingerprint, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}
