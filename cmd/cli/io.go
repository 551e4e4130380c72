package main

import (
	"fmt"
	"io"
)

// 标准输入读取上限
const maxInputSize = 16 << 20

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("输入超过 %d 字节", maxInputSize)
	}
	return data, nil
}
