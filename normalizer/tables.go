package normalizer

// Canonical service codes
const (
	ServiceEC2 = "EC2"
	ServiceVPC = "VPC"
)

// serviceAliases rewrites known service name variants to canonical
// upper-case codes. Unknown services pass through unchanged.
var serviceAliases = map[string]string{
	"ec2":                      ServiceEC2,
	"aws ec2":                  ServiceEC2,
	"elastic compute cloud":    ServiceEC2,
	"amazonec2":                ServiceEC2,
	"s3":                       "S3",
	"simple storage service":   "S3",
	"amazons3":                 "S3",
	"rds":                      "RDS",
	"relational database":      "RDS",
	"lambda":                   "LAMBDA",
	"dynamodb":                 "DYNAMODB",
	"elb":                      "ELB",
	"elbv2":                    "ELB",
	"elasticloadbalancing":     "ELB",
	"elastic load balancing":   "ELB",
	"vpc":                      ServiceVPC,
	"ec2-vpc":                  ServiceVPC,
	"virtual private cloud":    ServiceVPC,
	"eks":                      "EKS",
	"ecs":                      "ECS",
	"sqs":                      "SQS",
	"sns":                      "SNS",
	"iam":                      "IAM",
	"kms":                      "KMS",
	"route53":                  "ROUTE53",
	"cloudfront":               "CLOUDFRONT",
	"elasticache":              "ELASTICACHE",
	"redshift":                 "REDSHIFT",
	"cloudwatch":               "CLOUDWATCH",
	"resourcegroupstaggingapi": "TAGGING",
}

// typeAliases repairs known type-name variants, mostly compound nouns
// that discovery emits without separators.
var typeAliases = map[string]string{
	"securitygroup":        "security-group",
	"security_group":       "security-group",
	"sg":                   "security-group",
	"dbinstance":           "db-instance",
	"db_instance":          "db-instance",
	"dbcluster":            "db-cluster",
	"db_cluster":           "db-cluster",
	"routetable":           "route-table",
	"route_table":          "route-table",
	"networkinterface":     "network-interface",
	"network_interface":    "network-interface",
	"eni":                  "network-interface",
	"natgateway":           "nat-gateway",
	"nat_gateway":          "nat-gateway",
	"internetgateway":      "internet-gateway",
	"internet_gateway":     "internet-gateway",
	"igw":                  "internet-gateway",
	"vpngateway":           "vpn-gateway",
	"vpn_gateway":          "vpn-gateway",
	"transitgateway":       "transit-gateway",
	"transit_gateway":      "transit-gateway",
	"networkacl":           "network-acl",
	"network_acl":          "network-acl",
	"nacl":                 "network-acl",
	"elasticip":            "elastic-ip",
	"elastic_ip":           "elastic-ip",
	"eip":                  "elastic-ip",
	"loadbalancer":         "load-balancer",
	"load_balancer":        "load-balancer",
	"targetgroup":          "target-group",
	"target_group":         "target-group",
	"vpcendpoint":          "vpc-endpoint",
	"vpc_endpoint":         "vpc-endpoint",
	"vpcpeeringconnection": "vpc-peering-connection",
	"customergateway":      "customer-gateway",
	"dhcpoptions":          "dhcp-options",
}

// networkPrimitiveTypes are the VPC-family types. Resources of these
// types always belong to the VPC service, whatever service discovery
// attributed them to.
var networkPrimitiveTypes = map[string]bool{
	"vpc":                    true,
	"subnet":                 true,
	"security-group":         true,
	"route-table":            true,
	"network-interface":      true,
	"internet-gateway":       true,
	"nat-gateway":            true,
	"vpn-gateway":            true,
	"transit-gateway":        true,
	"network-acl":            true,
	"elastic-ip":             true,
	"vpc-endpoint":           true,
	"vpc-peering-connection": true,
	"customer-gateway":       true,
	"dhcp-options":           true,
}

// Container field names discovery stages wrap resource lists in
const (
	fieldAllDiscovered = "all_discovered_resources"
	fieldCompliant     = "compliant_resources"
	fieldNonCompliant  = "non_compliant_resources"
	fieldUntagged      = "untagged_resources"
)

// accountPlaceholders are sentinel values that count as "missing" when
// deciding whether an ARN-derived account id may overwrite a field.
var accountPlaceholders = map[string]bool{
	"":        true,
	"default": true,
	"unknown": true,
}
