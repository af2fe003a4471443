package session

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// 游标与姓名标签使用的固定调色板。
var palette = []string{
	"#02a568", "#1a73e8", "#e8710a", "#9334e6", "#d93025", "#0d9488",
}

// Identity 是一个连接的会话身份：随机生成的 userId、显示名和颜色。
// userId 在连接存续期间稳定，用于标记所有出站消息并识别自己的回声。
type Identity struct {
	UserID   string
	UserName string
	Color    string
}

// NewIdentity 生成新的会话身份。userName 为空时分配一个随机后缀的默认名。
func NewIdentity(userName string) Identity {
	if userName == "" {
		userName = fmt.Sprintf("user%03d", rand.Intn(1000))
	}
	return Identity{
		UserID:   "user_" + uuid.NewString(),
		UserName: userName,
		Color:    palette[rand.Intn(len(palette))],
	}
}
