package storage

// Storage 层级化的配置数据
// 实现了 ref.Convertable，可以直接作为 ref.New 的 options
type Storage interface {
	// Sub 获取子配置，key 用点号表示嵌套，[] 表示数组下标，例如 "stores[0].options"
	Sub(key string) Storage

	// ConvertTo 将配置数据写入结构体或者 map/slice
	ConvertTo(object any) error
}
