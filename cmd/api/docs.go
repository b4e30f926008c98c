package main

// @title           NFSe Emissor API
// @version         1.0
// @description     API de emissão de NFSe pelo emissor nacional e por provedor terceirizado

// @contact.name   Suporte
// @contact.email  suporte@nfse-emissor.com.br

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TenantID
// @in header
// @name tenant-id
// @description Identificador do tenant emissor
