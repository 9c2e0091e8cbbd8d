package main

// 引入交互平台插件，触发各平台的 init() 完成注册
import (
	_ "github.com/ontcollector/ontcollector/addone/interact/platforms/huawei_ont"
)
