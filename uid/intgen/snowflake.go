package intgen

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

type SnowflakeGeneratorOptions struct {
	// MachineID 机器ID，为 nil 时从IP地址获取
	MachineID *int64 `cfg:"machineID"`
	// Epoch 起始纪元时间，默认 2020-01-01 00:00:00 UTC
	Epoch time.Time `cfg:"epoch"`
}

// SnowflakeGenerator Snowflake算法生成器，所有序列共享一个计数器
// 64位结构：1位符号位(0) + 41位时间戳 + 10位机器ID + 12位序列号
type SnowflakeGenerator struct {
	state     atomic.Int64 // 高52位时间戳 + 低12位序列号
	machineID int64
	epoch     int64
}

const (
	sequenceBits  = 12
	machineIDBits = 10

	maxSequence  = (1 << sequenceBits) - 1  // 4095
	maxMachineID = (1 << machineIDBits) - 1 // 1023

	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func NewSnowflakeGeneratorWithOptions(options *SnowflakeGeneratorOptions) *SnowflakeGenerator {
	if options == nil {
		options = &SnowflakeGeneratorOptions{}
	}

	var machineID int64
	if options.MachineID != nil {
		machineID = *options.MachineID
	} else {
		machineID = machineIDFromIP()
	}

	epoch := defaultEpoch
	if !options.Epoch.IsZero() {
		epoch = options.Epoch
	}

	g := &SnowflakeGenerator{
		machineID: machineID & maxMachineID,
		epoch:     epoch.UnixMilli(),
	}
	g.state.Store((time.Now().UnixMilli() - g.epoch) << sequenceBits)
	return g
}

// machineIDFromIP 使用第一个非回环 IPv4 地址的最后两个字节
func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return int64(ipv4[2])<<8 | int64(ipv4[3])
			}
		}
	}
	return 0
}

func (g *SnowflakeGenerator) MachineID() int64 {
	return g.machineID
}

func (g *SnowflakeGenerator) Generate(_ context.Context, _ string) (int64, error) {
	for {
		oldState := g.state.Load()
		oldTimestamp := oldState >> sequenceBits
		oldSequence := oldState & maxSequence

		timestamp := time.Now().UnixMilli() - g.epoch
		var sequence int64
		switch {
		case timestamp > oldTimestamp:
			sequence = 0
		default:
			// 同一毫秒或时钟回拨，沿用上一个时间戳
			timestamp = oldTimestamp
			sequence = (oldSequence + 1) & maxSequence
			if sequence == 0 {
				for timestamp <= oldTimestamp {
					timestamp = time.Now().UnixMilli() - g.epoch
				}
			}
		}

		if g.state.CompareAndSwap(oldState, timestamp<<sequenceBits|sequence) {
			return timestamp<<timestampShift | g.machineID<<machineIDShift | sequence, nil
		}
	}
}
