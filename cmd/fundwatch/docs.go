package main

//go:generate swag init -g cmd/fundwatch/main.go -o docs --parseDependency --parseInternal

// @title fundwatch API
// @version 1.0
// @description Fund portfolio monitor: live valuation dashboard, holdings management and T+N order settlement.
// @BasePath /
